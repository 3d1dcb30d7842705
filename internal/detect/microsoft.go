package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/detectext/detectext/internal/config"
)

const microsoftTimeout = 60 * time.Second

// MicrosoftProvider detects text via the Azure Computer Vision OCR API.
type MicrosoftProvider struct {
	endpoint        string
	subscriptionKey string
	httpClient      *http.Client
}

// NewMicrosoftProvider creates an Azure-backed provider. The endpoint is
// configurable so tests can point it at a stub server.
func NewMicrosoftProvider(cfg *config.MicrosoftConfig) *MicrosoftProvider {
	return &MicrosoftProvider{
		endpoint:        strings.TrimSuffix(cfg.Endpoint, "/"),
		subscriptionKey: cfg.SubscriptionKey,
		httpClient: &http.Client{
			Timeout: microsoftTimeout,
		},
	}
}

// Name returns the provider name
func (p *MicrosoftProvider) Name() ProviderName {
	return ProviderMicrosoft
}

// microsoftOCRResponse is the Azure OCR region/line/word nesting.
type microsoftOCRResponse struct {
	Regions []struct {
		Lines []struct {
			Words []struct {
				Text string `json:"text"`
			} `json:"words"`
		} `json:"lines"`
	} `json:"regions"`
}

// Detect posts the raw image bytes with unknown-language detection and
// orientation correction, then flattens every region, line, and word of the
// response in order.
func (p *MicrosoftProvider) Detect(ctx context.Context, image []byte) (string, error) {
	params := url.Values{}
	params.Set("language", "unk")
	params.Set("detectOrientation", "true")
	requestURL := p.endpoint + "/vision/v2.0/ocr?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.subscriptionKey)

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
		return "", fmt.Errorf("azure ocr returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp microsoftOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var words []string
	for _, region := range ocrResp.Regions {
		for _, line := range region.Lines {
			for _, word := range line.Words {
				words = append(words, word.Text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(words, " ")), nil
}
