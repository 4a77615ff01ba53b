package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/config"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/mockdata"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

const usableKey = "sk_0123456789abcdef0123456789abcdef"

var (
	upstreamAudio = []byte("upstream-mp3-bytes")
	sampleAudio   = []byte("sample-mp3-bytes")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI is an httptest stand-in for the ElevenLabs API.
type fakeAPI struct {
	srv   *httptest.Server
	calls atomic.Int32
	keys  chan string
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{keys: make(chan string, 16)}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.calls.Add(1)
		select {
		case api.keys <- r.Header.Get("xi-api-key"):
		default:
		}
		handler(w, r)
	}))
	t.Cleanup(api.srv.Close)
	return api
}

type bytesSample []byte

func (b bytesSample) Fetch(context.Context) ([]byte, error) {
	return b, nil
}

func staticSampleSource(data []byte) mockdata.SampleSource {
	return bytesSample(data)
}

func newTestRouter(t *testing.T, cfg config.Config, apiURL, defaultKey string, sample mockdata.SampleSource) http.Handler {
	t.Helper()
	logger := discardLogger()
	svc := proxy.New(
		elevenlabs.NewClient(apiURL, time.Second),
		sample,
		proxy.Options{DefaultKey: defaultKey, MockDelay: -1},
		logger,
		nil,
	)
	return NewRouter(cfg, svc, logger)
}

func do(t *testing.T, h http.Handler, method, target, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if key != "" {
		req.Header.Set(credential.Header, key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	if len(payload) != 1 {
		t.Errorf("error payload = %v, want a single error field", payload)
	}
	return payload["error"]
}

type voicesBody struct {
	Voices []elevenlabs.Voice `json:"voices"`
	IsMock bool               `json:"is_mock"`
}

func TestVoicesWithoutCredentialReturnsMockCatalog(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a credential")
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/voices", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body voicesBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.IsMock {
		t.Error("is_mock = false, want true")
	}
	if len(body.Voices) != len(mockdata.Voices()) {
		t.Errorf("got %d voices, want %d", len(body.Voices), len(mockdata.Voices()))
	}
}

func TestVoicesAuthRejectionFallsBackToMock(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/voices", usableKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on upstream 401", rec.Code)
	}
	var body voicesBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.IsMock || len(body.Voices) != len(mockdata.Voices()) {
		t.Errorf("is_mock=%v voices=%d, want full mock catalog", body.IsMock, len(body.Voices))
	}
	if api.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", api.calls.Load())
	}
}

func TestVoicesLiveCatalog(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"voices":[{"voice_id":"live","name":"Live Voice"}]}`))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/voices", usableKey, "")
	var body voicesBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.IsMock {
		t.Error("is_mock = true, want false")
	}
	if len(body.Voices) != 1 || body.Voices[0].VoiceID != "live" {
		t.Errorf("voices = %+v, want live entry", body.Voices)
	}
	if got := <-api.keys; got != usableKey {
		t.Errorf("upstream key = %q, want header key", got)
	}
}

func TestVoicesUsesConfiguredDefaultKey(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"voices":[]}`))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, usableKey, mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/voices", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := <-api.keys; got != usableKey {
		t.Errorf("upstream key = %q, want configured default", got)
	}
}

func TestModelsWithoutCredential(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a credential")
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/models", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var models []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &models); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(models) != len(mockdata.Models()) {
		t.Fatalf("got %d models, want %d", len(models), len(mockdata.Models()))
	}
	for _, m := range models {
		if m["is_mock"] != true {
			t.Errorf("model %v missing is_mock=true", m["model_id"])
		}
	}
}

func TestModelsLivePassthrough(t *testing.T) {
	raw := `[{"model_id":"eleven_v3","name":"Eleven v3"}]`
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(raw))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/models", usableKey, "")
	if rec.Body.String() != raw {
		t.Errorf("body = %s, want %s", rec.Body.String(), raw)
	}
}

func TestTTSMissingFields(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called for invalid input")
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	for _, body := range []string{`{"voiceId":"v1"}`, `{"text":"hi"}`, `{"text":"","voiceId":""}`, ""} {
		rec := do(t, h, http.MethodPost, "/api/tts", usableKey, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		if msg := decodeError(t, rec); msg != "Missing text or voiceId" {
			t.Errorf("body %q: error = %q", body, msg)
		}
	}
	if api.calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0", api.calls.Load())
	}
}

func TestTTSInvalidJSON(t *testing.T) {
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodPost, "/api/tts", "", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "invalid request body" {
		t.Errorf("error = %q", msg)
	}
}

func TestTTSWithoutCredentialServesSample(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a credential")
	})
	sample := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(sampleAudio)
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewRemoteSample(sample.srv.URL, time.Second))

	rec := do(t, h, http.MethodPost, "/api/tts", "short", `{"text":"hi","voiceId":"21m00Tcm4TlvDq8ikWAM"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", ct)
	}
	if rec.Body.String() != string(sampleAudio) {
		t.Errorf("body = %q, want sample audio", rec.Body.String())
	}
}

func TestTTSMockVoicePrefixAlwaysMock(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called for mock-only voices")
	})
	sample := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(sampleAudio)
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, usableKey, mockdata.NewRemoteSample(sample.srv.URL, time.Second))

	rec := do(t, h, http.MethodPost, "/api/tts", usableKey, `{"text":"xin chào","voiceId":"vi_vn_male_1"}`)
	if rec.Code != http.StatusOK || rec.Body.String() != string(sampleAudio) {
		t.Fatalf("status=%d body=%q, want sample audio", rec.Code, rec.Body.String())
	}
}

func TestTTSUpstreamSuccess(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/v1" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["model_id"] != "eleven_multilingual_v2" {
			t.Errorf("model_id = %v, want default", payload["model_id"])
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(upstreamAudio)
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodPost, "/api/tts", usableKey, `{"text":"hello","voiceId":"v1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != string(upstreamAudio) {
		t.Errorf("body = %q, want upstream audio unmodified", rec.Body.String())
	}
}

func TestTTSUpstreamNotFoundServesSample(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":{"status":"voice_not_found","message":"voice not found"}}`))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", staticSampleSource(sampleAudio))

	rec := do(t, h, http.MethodPost, "/api/tts", usableKey, `{"text":"hi","voiceId":"ThT52p0601"}`)
	if rec.Code != http.StatusOK || rec.Body.String() != string(sampleAudio) {
		t.Fatalf("status=%d body=%q, want sample audio", rec.Code, rec.Body.String())
	}
}

func TestTTSUpstreamErrorDecoded(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"detail":{"message":"X"}}`))
	})
	h := newTestRouter(t, config.Config{}, api.srv.URL, "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodPost, "/api/tts", usableKey, `{"text":"hi","voiceId":"v1"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "X" {
		t.Errorf("error = %q, want X", msg)
	}
}

func TestTTSSampleFailure(t *testing.T) {
	sample := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewRemoteSample(sample.srv.URL, time.Second))

	rec := do(t, h, http.MethodPost, "/api/tts", "", `{"text":"hi","voiceId":"v1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); msg == "" {
		t.Error("expected a user-facing error message")
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/api/unknown", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Not Found" {
		t.Errorf("error = %q", msg)
	}
}

func TestAPIWrongMethod(t *testing.T) {
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/api/voices"},
		{http.MethodDelete, "/api/models"},
		{http.MethodGet, "/api/tts"},
	} {
		rec := do(t, h, tc.method, tc.target, "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: status = %d, want 405", tc.method, tc.target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s %s: Content-Type = %q", tc.method, tc.target, ct)
		}
		if msg := decodeError(t, rec); msg != "Method Not Allowed" {
			t.Errorf("%s %s: error = %q", tc.method, tc.target, msg)
		}
	}
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, config.Config{}, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	req := httptest.NewRequest(http.MethodOptions, "/api/tts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, credential.Header) {
		t.Errorf("Allow-Headers = %q, want %s", got, credential.Header)
	}
}

func TestStaticAssetsInProduction(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>studio</html>"), 0o644)
	os.MkdirAll(filepath.Join(dir, "assets"), 0o755)
	os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644)

	cfg := config.Config{Environment: config.EnvProduction, StaticDir: dir}
	h := newTestRouter(t, cfg, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/assets/app.js", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Errorf("asset: status=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/history/42", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "studio") {
		t.Errorf("deep link: status=%d body=%q, want index.html", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/missing", "", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec) != "Not Found" {
		t.Errorf("api miss: status=%d body=%q, want JSON 404", rec.Code, rec.Body.String())
	}
}

func TestNoStaticAssetsInDevelopment(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>studio</html>"), 0o644)

	cfg := config.Config{Environment: config.EnvDevelopment, StaticDir: dir}
	h := newTestRouter(t, cfg, "http://127.0.0.1:1", "", mockdata.NewStaticSample(nil))

	rec := do(t, h, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when assets are not served", rec.Code)
	}
}
