package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// Upload submits an image-bearing document's raw payload to the files
// API so later calls can reference it by URI instead of re-sending
// megabytes of inline data. Implements ports.FileStore.
func (c *Client) Upload(ctx context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error) {
	raw, err := base64.StdEncoding.DecodeString(doc.RawBytesBase64)
	if err != nil {
		return domain.UploadedFileHandle{}, fmt.Errorf("decode document payload: %w", err)
	}
	if len(raw) == 0 {
		return domain.UploadedFileHandle{}, fmt.Errorf("document %s has no payload to upload", doc.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", strings.NewReader(string(raw)))
	if err != nil {
		return domain.UploadedFileHandle{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("X-Goog-File-Name", doc.Name)
	req.Header.Set("Content-Type", doc.MediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UploadedFileHandle{}, fmt.Errorf("gemini upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.UploadedFileHandle{}, newHTTPStatusError("upload", resp)
	}

	var response struct {
		File struct {
			Name      string `json:"name"`
			URI       string `json:"uri"`
			SizeBytes string `json:"sizeBytes"`
		} `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.UploadedFileHandle{}, fmt.Errorf("decode upload response: %w", err)
	}
	if response.File.URI == "" {
		return domain.UploadedFileHandle{}, fmt.Errorf("upload response missing file uri")
	}

	size, _ := strconv.ParseInt(response.File.SizeBytes, 10, 64)
	if size == 0 {
		size = int64(len(raw))
	}
	return domain.UploadedFileHandle{
		DocumentID: doc.ID,
		RemoteURI:  response.File.URI,
		RemoteName: response.File.Name,
		SizeBytes:  size,
		UploadedAt: time.Now().UTC(),
	}, nil
}
