package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"tahadi/config"
	"tahadi/models"
)

// GenerateOptions are the per-call flags the authoring pipeline toggles.
type GenerateOptions struct {
	// WebSearch enables live search grounding for the call.
	WebSearch bool
	// JSONResponse constrains the model to emit application/json.
	JSONResponse bool
}

// GenerateResult is the response text plus whatever grounding citations the
// service attached. Sources without a resolvable URI are already dropped.
type GenerateResult struct {
	Text    string
	Sources []models.GroundingSource
}

// GenerativeClient is the unreliable text-generation collaborator. Any call
// may fail or return malformed text; callers own the degrade path.
type GenerativeClient interface {
	GenerateContent(ctx context.Context, model, prompt string, opts GenerateOptions) (*GenerateResult, error)
}

// GeminiService talks to the Gemini generateContent REST API.
type GeminiService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewGeminiService(cfg *config.Config) *GeminiService {
	if cfg.GeminiAPIKey == "" {
		log.Printf("GEMINI_API_KEY is not set; authoring requests will degrade to placeholders")
	}
	return &GeminiService{
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		apiKey:     cfg.GeminiAPIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.GeminiTimeoutSec) * time.Second},
		maxRetries: cfg.GeminiMaxRetries,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	Tools            []geminiTool            `json:"tools,omitempty"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					Title string `json:"title"`
					URI   string `json:"uri"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type geminiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (s *GeminiService) GenerateContent(ctx context.Context, model, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	if s.apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model required")
	}

	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}
	if opts.WebSearch {
		req.Tools = append(req.Tools, geminiTool{GoogleSearch: &struct{}{}})
	}
	if opts.JSONResponse {
		req.GenerationConfig = &geminiGenerationConfig{ResponseMIMEType: "application/json"}
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", model)

	var resp geminiResponse
	if err := s.do(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, errors.New("gemini returned empty text")
	}

	result := &GenerateResult{Text: text.String()}
	if candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || strings.TrimSpace(chunk.Web.URI) == "" {
				continue
			}
			title := chunk.Web.Title
			if strings.TrimSpace(title) == "" {
				title = "مصدر خارجي"
			}
			result.Sources = append(result.Sources, models.GroundingSource{
				Title: title,
				URI:   chunk.Web.URI,
			})
		}
	}

	return result, nil
}

func (s *GeminiService) do(ctx context.Context, path string, body, out interface{}) error {
	backoff := time.Second

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.doOnce(ctx, path, body, out)
		if err == nil {
			return nil
		}
		if attempt >= s.maxRetries || !isRetryable(err) {
			return err
		}

		log.Printf("Gemini request retrying (attempt %d/%d): %v", attempt+1, s.maxRetries, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

func (s *GeminiService) doOnce(ctx context.Context, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &geminiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gemini decode error: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var httpErr *geminiHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	// Transport-level failures are worth one more try.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
