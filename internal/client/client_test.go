package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

func newStudio(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)
}

func TestVoicesSendsSessionKey(t *testing.T) {
	t.Parallel()

	var gotKey string
	srv := newStudio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/voices", r.URL.Path)
		gotKey = r.Header.Get(credential.Header)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"voices":[{"voice_id":"v1","name":"Rachel"}],"is_mock":false}`)
	})

	c, err := New(srv.URL+"/", WithSession(Session{APIKey: "sk_abc"}))
	require.NoError(t, err)

	list, err := c.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk_abc", gotKey)
	assert.False(t, list.IsMock)
	require.Len(t, list.Voices, 1)

	v, ok := list.Find("v1")
	require.True(t, ok)
	assert.Equal(t, "Rachel", v.Name)
	_, ok = list.Find("missing")
	assert.False(t, ok)
}

func TestNoSessionSendsNoHeader(t *testing.T) {
	t.Parallel()

	srv := newStudio(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[http.CanonicalHeaderKey(credential.Header)]
		assert.False(t, present)
		_, _ = io.WriteString(w, `[{"model_id":"m1","name":"Model","is_mock":true}]`)
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.True(t, models[0].IsMock)
}

func TestSpeakReturnsAudio(t *testing.T) {
	t.Parallel()

	srv := newStudio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req proxy.SpeechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "xin chào", req.Text)
		assert.Equal(t, "v1", req.VoiceID)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xFF, 0xFB, 0x90})
	})

	c, err := New(srv.URL)
	require.NoError(t, err)

	audio, err := c.Speak(context.Background(), proxy.SpeechRequest{Text: "xin chào", VoiceID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90}, audio)
}

func TestSpeakRejectsEmptyText(t *testing.T) {
	t.Parallel()

	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.Speak(context.Background(), proxy.SpeechRequest{Text: "  ", VoiceID: "v1"})
	require.Error(t, err)
}

func TestSpeakErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"error field", http.StatusBadRequest, "application/json", `{"error":"Missing text or voiceId"}`, 400, "Missing text or voiceId"},
		{"detail message", http.StatusPaymentRequired, "application/json", `{"detail":{"message":"quota exceeded"}}`, 402, "quota exceeded"},
		{"plain text", http.StatusBadGateway, "text/plain", `upstream down`, 502, "upstream down"},
		{"empty body", http.StatusInternalServerError, "text/plain", ``, 500, msgGenericFailure},
		{"json under 200", http.StatusOK, "application/json; charset=utf-8", `{"error":"odd"}`, 500, "odd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newStudio(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			c, err := New(srv.URL)
			require.NoError(t, err)

			_, err = c.Speak(context.Background(), proxy.SpeechRequest{Text: "hi", VoiceID: "v1"})
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.wantStatus, apiErr.Status)
			assert.Equal(t, tc.wantMessage, apiErr.Message)
		})
	}
}

func TestUnauthorized(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Error{Status: http.StatusUnauthorized}).Unauthorized())
	assert.False(t, (&Error{Status: http.StatusForbidden}).Unauthorized())
}

func TestCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, Cost("hello", "eleven_multilingual_v2"))
	assert.Equal(t, 10, Cost("hello", PremiumModelID))
	assert.Equal(t, 8, Cost("xin chào", "eleven_flash_v2_5"))
	assert.Equal(t, 0, Cost("", PremiumModelID))
}

func TestBalance(t *testing.T) {
	t.Parallel()

	b := &Balance{Remaining: 6}
	cost, err := b.Quote("hello", "eleven_multilingual_v2")
	require.NoError(t, err)
	assert.Equal(t, 6, b.Remaining, "quote must not change the balance")

	b.Deduct(cost)
	assert.Equal(t, 1, b.Remaining)

	_, err = b.Quote("hello", PremiumModelID)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	assert.Equal(t, InitialCredits, NewBalance().Remaining)
}

func TestPreviewText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Xin chào, tôi là Rachel. Rất vui được gặp bạn!", PreviewText("Rachel"))
	assert.Contains(t, PreviewText(""), "giọng đọc này")
}
