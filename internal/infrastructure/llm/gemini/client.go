// Package gemini is the external multimodal generation service boundary.
// The pipeline treats it as a black box callable that may fail and always
// reaches it through a rate limiter.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Client struct {
	baseURL        string
	apiKey         string
	structureModel string
	extractModel   string
	httpClient     *http.Client
	executor       *resilience.Executor
}

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(apiKey, structureModel, extractModel string, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if structureModel == "" {
		structureModel = "gemini-2.5-pro"
	}
	if extractModel == "" {
		extractModel = "gemini-2.0-flash"
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		structureModel: structureModel,
		extractModel:   extractModel,
		httpClient:     &http.Client{Timeout: timeout},
		executor:       options.ResilienceExecutor,
	}
}

func (c *Client) ModelName(variant ports.ModelVariant) string {
	if variant == ports.VariantStructure {
		return c.structureModel
	}
	return c.extractModel
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
	FileData   *fileData   `json:"file_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResult, error) {
	model := c.ModelName(req.Variant)
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: encodeParts(req.Parts)}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			MaxOutputTokens:  req.MaxOutputTokens,
		},
	}

	var response generateContentResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini.generate", call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("gemini generate", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return nil, domain.WrapError(domain.ErrModelService, "gemini generate", fmt.Errorf("empty response: no candidates"))
	}

	var sb strings.Builder
	for _, p := range response.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return &ports.GenerateResult{
		Text: strings.TrimSpace(sb.String()),
		Usage: domain.Usage{
			InputTokens:  response.UsageMetadata.PromptTokenCount,
			OutputTokens: response.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func encodeParts(parts []ports.PromptPart) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.FileURI != "":
			out = append(out, part{FileData: &fileData{MimeType: p.MimeType, FileURI: p.FileURI}})
		case len(p.InlineData) > 0:
			out = append(out, part{InlineData: &inlineData{
				MimeType: p.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData),
			}})
		default:
			out = append(out, part{Text: p.Text})
		}
	}
	return out
}
