package domain

import "time"

// DocumentMeta identifies a source document provided by the storage
// collaborator. The pipeline treats it as read-only and fetches the
// actual bytes through ports.DocumentFetcher.
type DocumentMeta struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MediaType     string `json:"media_type"`
	SourceLocator string `json:"source_locator"`
}

type DocumentKind string

const (
	KindTextBearing  DocumentKind = "text"
	KindImageBearing DocumentKind = "image"
)

// PreparedDocument is the classifier's output. Exactly one of TextContent
// or RawBytesBase64 is populated, chosen by the confidence threshold.
type PreparedDocument struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	MediaType      string       `json:"media_type"`
	Kind           DocumentKind `json:"kind"`
	Confidence     float64      `json:"confidence"`
	CharCount      int          `json:"char_count"`
	WordCount      int          `json:"word_count"`
	PageCount      int          `json:"page_count"`
	TextContent    string       `json:"text_content,omitempty"`
	RawBytesBase64 string       `json:"raw_bytes_base64,omitempty"`
}

// UploadedFileHandle represents a completed submission of a document to
// the external model service. Owned by the upload cache, keyed by
// document id.
type UploadedFileHandle struct {
	DocumentID string    `json:"document_id"`
	RemoteURI  string    `json:"remote_uri"`
	RemoteName string    `json:"remote_name"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}
