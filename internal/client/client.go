// Package client talks to the studio HTTP surface. It is the Go counterpart
// of the browser front end: the credential is carried by a Session value the
// caller owns, never by package state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

const (
	// DefaultTimeout covers the mock delay plus a full upstream synthesis.
	DefaultTimeout = 60 * time.Second

	// InitialCredits is the per-session credit balance.
	InitialCredits = 300000

	// PremiumModelID is billed at twice the base rate.
	PremiumModelID = "eleven_v3_alpha"

	msgGenericFailure = "Failed to generate speech"
	maxErrorBytes     = 64 << 10
)

// Session holds the caller-supplied credential. The zero value sends no key
// and gets the server's default-credential behavior.
type Session struct {
	APIKey string
}

// Client calls the studio routes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    Session
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSession sets the credential sent with every request.
func WithSession(s Session) Option {
	return func(c *Client) {
		c.session = s
	}
}

// New returns a Client for the studio at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: base url is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-success response from the studio.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("client: status %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the credential was rejected.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// VoiceList is the body of GET /api/voices.
type VoiceList struct {
	Voices []elevenlabs.Voice `json:"voices"`
	IsMock bool               `json:"is_mock"`
}

// Find returns the voice with id.
func (l VoiceList) Find(id string) (elevenlabs.Voice, bool) {
	for _, v := range l.Voices {
		if v.VoiceID == id {
			return v, true
		}
	}
	return elevenlabs.Voice{}, false
}

// Voices fetches the voice catalog and whether it is mock data.
func (c *Client) Voices(ctx context.Context) (VoiceList, error) {
	var out VoiceList
	if err := c.getJSON(ctx, "/api/voices", &out); err != nil {
		return VoiceList{}, err
	}
	return out, nil
}

// Models fetches the model catalog.
func (c *Client) Models(ctx context.Context) ([]elevenlabs.Model, error) {
	var out []elevenlabs.Model
	if err := c.getJSON(ctx, "/api/models", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Speak requests synthesis and returns the MP3 bytes.
func (c *Client) Speak(ctx context.Context, req proxy.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("client: text is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/tts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: http request: %w", err)
	}
	defer resp.Body.Close()

	// A JSON body is an error report even under a 200.
	if resp.StatusCode != http.StatusOK || isJSON(resp.Header.Get("Content-Type")) {
		return nil, decodeError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read audio: %w", err)
	}
	return audio, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if key := strings.TrimSpace(c.session.APIKey); key != "" {
		httpReq.Header.Set(credential.Header, key)
	}
	return httpReq, nil
}

func decodeError(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	status := resp.StatusCode
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	return &Error{Status: status, Message: errorMessage(raw)}
}

// errorMessage prefers a string "error", then detail.message, then the raw
// text of a non-JSON body.
func errorMessage(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return msgGenericFailure
	}

	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return text
	}

	var s string
	if json.Unmarshal(payload.Error, &s) == nil && s != "" {
		return s
	}
	var detail struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(payload.Detail, &detail) == nil && detail.Message != "" {
		return detail.Message
	}
	if len(payload.Error) > 0 && string(payload.Error) != "null" {
		return string(payload.Error)
	}
	return msgGenericFailure
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// Cost returns the credits charged for synthesizing text with model.
func Cost(text, model string) int {
	perChar := 1
	if model == PremiumModelID {
		perChar = 2
	}
	return utf8.RuneCountInString(text) * perChar
}

// Balance tracks the per-session credit balance.
type Balance struct {
	Remaining int
}

// NewBalance returns a balance of InitialCredits.
func NewBalance() *Balance {
	return &Balance{Remaining: InitialCredits}
}

// ErrInsufficientCredits is returned by Quote when cost exceeds the balance.
var ErrInsufficientCredits = errors.New("client: insufficient credits")

// Quote returns the cost of text with model, or ErrInsufficientCredits when
// the remaining balance cannot cover it. The balance is not changed.
func (b *Balance) Quote(text, model string) (int, error) {
	cost := Cost(text, model)
	if cost > b.Remaining {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, cost, b.Remaining)
	}
	return cost, nil
}

// Deduct subtracts a quoted cost after a successful synthesis.
func (b *Balance) Deduct(cost int) {
	b.Remaining -= cost
}

// PreviewText is the greeting used to audition a voice.
func PreviewText(voiceName string) string {
	if voiceName == "" {
		voiceName = "giọng đọc này"
	}
	return fmt.Sprintf("Xin chào, tôi là %s. Rất vui được gặp bạn!", voiceName)
}
