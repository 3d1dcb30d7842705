package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detectext/detectext/internal/config"
	"github.com/detectext/detectext/internal/detect"
	"github.com/detectext/detectext/internal/observability"
	"github.com/detectext/detectext/internal/storage"
)

type fakeProvider struct {
	name  detect.ProviderName
	text  string
	err   error
	calls atomic.Int64
}

func (f *fakeProvider) Name() detect.ProviderName {
	return f.name
}

func (f *fakeProvider) Detect(ctx context.Context, image []byte) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type testProviders struct {
	amazon    *fakeProvider
	google    *fakeProvider
	microsoft *fakeProvider
}

func (p *testProviders) totalCalls() int64 {
	return p.amazon.calls.Load() + p.google.calls.Load() + p.microsoft.calls.Load()
}

func newTestServer(t *testing.T) (*Server, *testProviders) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			StaticDir: t.TempDir(),
		},
		Providers: config.ProvidersConfig{
			DefaultEngine: "google",
			Timeout:       time.Second,
		},
		Storage: config.StorageConfig{
			Provider:      "local",
			LocalPath:     t.TempDir(),
			Bucket:        "archive",
			MaxUploadSize: 1 << 20,
		},
	}

	archive, err := storage.NewService(&cfg.Storage)
	require.NoError(t, err)

	providers := &testProviders{
		amazon:    &fakeProvider{name: detect.ProviderAmazon, text: "amazon text"},
		google:    &fakeProvider{name: detect.ProviderGoogle, text: "google text"},
		microsoft: &fakeProvider{name: detect.ProviderMicrosoft, text: "microsoft text"},
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			ErrorHandler: errorHandler,
		}),
		config: cfg,
		dispatcher: detect.NewDispatcher(
			providers.amazon,
			providers.google,
			providers.microsoft,
			nil,
			cfg.Providers.Timeout,
			nil,
		),
		archive: archive,
		metrics: observability.NewMetrics(),
	}
	s.setupRoutes()

	return s, providers
}

// uploadRequest builds a multipart POST to the detection endpoint. Fields
// with empty values are omitted, matching a form that leaves them blank.
func uploadRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for key, value := range fields {
		if value != "" {
			require.NoError(t, writer.WriteField(key, value))
		}
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detecttext", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestDetectText_MissingImage(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, nil, map[string]string{"engine": "google"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Error: No image file sent. Please try again.", readBody(t, resp))
	assert.Zero(t, providers.totalCalls(), "no provider is called without an image")
}

func TestDetectText_EmptyImage(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, []byte{}, map[string]string{"engine": "google"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Error: No image file sent. Please try again.", readBody(t, resp))
	assert.Zero(t, providers.totalCalls())
}

func TestDetectText_UnknownEngine(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), map[string]string{"engine": "banana"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Error: Requested engine banana not found.", readBody(t, resp))
	assert.Zero(t, providers.totalCalls(), "unknown engine must not reach any provider")
}

func TestDetectText_DefaultEngineApplied(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "google text", readBody(t, resp))
	assert.EqualValues(t, 1, providers.google.calls.Load())
	assert.Zero(t, providers.amazon.calls.Load())
	assert.Zero(t, providers.microsoft.calls.Load())
}

func TestDetectText_SingleEngine(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), map[string]string{
		"engine": "amazon",
		"source": "webform",
	}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "amazon text", readBody(t, resp))
	assert.EqualValues(t, 1, providers.amazon.calls.Load())
	assert.Zero(t, providers.google.calls.Load())
}

func TestDetectText_SingleEngineProviderError(t *testing.T) {
	server, providers := newTestServer(t)
	providers.microsoft.err = fiber.NewError(http.StatusTeapot, "vendor exploded")
	providers.microsoft.text = ""

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), map[string]string{"engine": "microsoft"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Error: ")
}

func TestDetectText_AllEngines(t *testing.T) {
	server, providers := newTestServer(t)

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), map[string]string{"engine": "all"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Results []struct {
			Engine       string `json:"engine"`
			DetectedText string `json:"detectedText"`
			Error        string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &payload))
	require.Len(t, payload.Results, 3)

	texts := make(map[string]string)
	for _, entry := range payload.Results {
		texts[entry.Engine] = entry.DetectedText
		assert.Empty(t, entry.Error)
	}
	assert.Equal(t, "amazon text", texts["Amazon"])
	assert.Equal(t, "google text", texts["Google"])
	assert.Equal(t, "microsoft text", texts["Microsoft"])

	assert.EqualValues(t, 1, providers.amazon.calls.Load())
	assert.EqualValues(t, 1, providers.google.calls.Load())
	assert.EqualValues(t, 1, providers.microsoft.calls.Load())
}

func TestDetectText_AllEnginesPartialFailure(t *testing.T) {
	server, providers := newTestServer(t)
	providers.google.err = io.ErrUnexpectedEOF
	providers.google.text = ""

	resp, err := server.app.Test(uploadRequest(t, []byte("img"), map[string]string{"engine": "all"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "all-engines response completes despite one failure")

	var payload struct {
		Results []struct {
			Engine       string `json:"engine"`
			DetectedText string `json:"detectedText"`
			Error        string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &payload))
	require.Len(t, payload.Results, 3)

	var googleEntry, others int
	for _, entry := range payload.Results {
		if entry.Engine == "Google" {
			googleEntry++
			assert.NotEmpty(t, entry.Error)
			assert.Empty(t, entry.DetectedText)
		} else {
			others++
			assert.Empty(t, entry.Error)
			assert.NotEmpty(t, entry.DetectedText)
		}
	}
	assert.Equal(t, 1, googleEntry)
	assert.Equal(t, 2, others)
}

func TestDetectText_UploadTooLarge(t *testing.T) {
	server, providers := newTestServer(t)
	server.config.Storage.MaxUploadSize = 4

	// Archive service reads the limit from the same config struct
	resp, err := server.app.Test(uploadRequest(t, []byte("larger than four"), map[string]string{"engine": "google"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "exceeds maximum allowed size")
	assert.Zero(t, providers.totalCalls())
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"archive":"local"`)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
