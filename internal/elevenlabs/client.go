package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// BaseURL is the ElevenLabs API base URL.
	BaseURL = "https://api.elevenlabs.io/v1"

	// DefaultTimeout bounds synthesis requests.
	DefaultTimeout = 30 * time.Second

	// DefaultListTimeout bounds catalog requests (voices, models).
	DefaultListTimeout = 5 * time.Second

	// AudioMIME is the content type requested from and returned by synthesis.
	AudioMIME = "audio/mpeg"

	maxCatalogBytes = 16 << 20
	maxAudioBytes   = 64 << 20
	maxErrorBytes   = 4096
)

// Client wraps HTTP calls to the ElevenLabs API. The API key is supplied per
// call and never retained.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	listTimeout time.Duration
}

// NewClient constructs an ElevenLabs API client. An empty baseURL selects
// BaseURL and a non-positive listTimeout selects DefaultListTimeout.
func NewClient(baseURL string, listTimeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = BaseURL
	}
	if listTimeout <= 0 {
		listTimeout = DefaultListTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		listTimeout: listTimeout,
	}
}

// ListVoices fetches the voice catalog visible to apiKey and returns the
// response body untouched.
func (c *Client) ListVoices(ctx context.Context, apiKey string) (json.RawMessage, error) {
	return c.getCatalog(ctx, apiKey, "/voices")
}

// ListModels fetches the model catalog visible to apiKey and returns the
// response body untouched.
func (c *Client) ListModels(ctx context.Context, apiKey string) (json.RawMessage, error) {
	return c.getCatalog(ctx, apiKey, "/models")
}

func (c *Client) getCatalog(ctx context.Context, apiKey, path string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	body, err := readLimited(resp.Body, maxCatalogBytes)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read %s: %w", path, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("elevenlabs: %s returned invalid JSON", path)
	}
	return json.RawMessage(body), nil
}

// Synthesize calls the text-to-speech endpoint for voiceID and returns the
// MP3 payload as sent by the API.
func (c *Client) Synthesize(ctx context.Context, apiKey, voiceID string, req SynthesizeRequest) ([]byte, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("elevenlabs: voice_id is required")
	}
	if req.Text == "" {
		return nil, fmt.Errorf("elevenlabs: text is required")
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", AudioMIME)
	httpReq.Header.Set("xi-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	audio, err := readLimited(resp.Body, maxAudioBytes)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}

// ErrTooLarge is returned when a response body exceeds its size limit.
var ErrTooLarge = errors.New("elevenlabs: response exceeds size limit")

// readLimited reads r fully, failing instead of truncating when it holds
// more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}

func newAPIError(resp *http.Response) *APIError {
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	return &APIError{StatusCode: resp.StatusCode, Body: errBody}
}
