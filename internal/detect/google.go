package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/detectext/detectext/internal/config"
)

const googleTimeout = 60 * time.Second

// GoogleProvider detects text via the Google Cloud Vision annotate API.
type GoogleProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewGoogleProvider creates a Vision-backed provider. The endpoint is
// configurable so tests can point it at a stub server.
func NewGoogleProvider(cfg *config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: googleTimeout,
		},
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() ProviderName {
	return ProviderGoogle
}

// googleAnnotateRequest is the Vision images:annotate envelope.
type googleAnnotateRequest struct {
	Requests []googleAnnotateEntry `json:"requests"`
}

type googleAnnotateEntry struct {
	Image    googleImage     `json:"image"`
	Features []googleFeature `json:"features"`
}

type googleImage struct {
	Content string `json:"content"` // base64-encoded image bytes
}

type googleFeature struct {
	Type string `json:"type"`
}

type googleAnnotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *googleStatus `json:"error"`
	} `json:"responses"`
	Error *googleStatus `json:"error"`
}

type googleStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Detect base64-encodes the image into a TEXT_DETECTION annotate request.
// The first annotation of the first response entry is the full detected
// text; everything after it is per-block detail this service does not use.
func (p *GoogleProvider) Detect(ctx context.Context, image []byte) (string, error) {
	annotateReq := googleAnnotateRequest{
		Requests: []googleAnnotateEntry{
			{
				Image:    googleImage{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []googleFeature{{Type: "TEXT_DETECTION"}},
			},
		},
	}

	body, err := json.Marshal(annotateReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := p.endpoint + "/v1/images:annotate?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var annotateResp googleAnnotateResponse
	if err := json.Unmarshal(respBody, &annotateResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if annotateResp.Error != nil {
		return "", fmt.Errorf("vision error: %s (code %d)", annotateResp.Error.Message, annotateResp.Error.Code)
	}

	if len(annotateResp.Responses) == 0 {
		return "", nil
	}

	entry := annotateResp.Responses[0]
	if entry.Error != nil {
		return "", fmt.Errorf("vision error: %s (code %d)", entry.Error.Message, entry.Error.Code)
	}

	// No annotations means no text in the image, not a failure
	if len(entry.TextAnnotations) == 0 {
		return "", nil
	}

	return strings.TrimSpace(entry.TextAnnotations[0].Description), nil
}
