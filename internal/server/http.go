package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/adapterinfo"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/config"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

const maxRequestBody = 1 << 20

// Proxy is the behavior the HTTP and gRPC surfaces need from proxy.Service.
type Proxy interface {
	Credential(header string) string
	ListVoices(ctx context.Context, key string) proxy.Catalog
	ListModels(ctx context.Context, key string) proxy.Catalog
	Synthesize(ctx context.Context, key string, req proxy.SpeechRequest) proxy.Result
}

type handlers struct {
	proxy Proxy
	log   *slog.Logger
}

// NewRouter builds the HTTP surface: the three API routes, health, and the
// built front end when cfg asks for asset serving.
func NewRouter(cfg config.Config, p Proxy, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{proxy: p, log: logger.With("component", "http")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", h.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/voices", h.voices)
		r.Get("/models", h.models)
		r.Post("/tts", h.tts)
		r.NotFound(apiNotFound)
		r.MethodNotAllowed(apiMethodNotAllowed)
	})

	if cfg.ServesAssets() {
		r.NotFound(spaHandler(cfg.StaticDir))
	} else {
		r.NotFound(apiNotFound)
	}

	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": adapterinfo.Version(),
	})
}

func (h *handlers) voices(w http.ResponseWriter, r *http.Request) {
	key := h.proxy.Credential(r.Header.Get(credential.Header))
	writeRawJSON(w, http.StatusOK, h.proxy.ListVoices(r.Context(), key).Body)
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	key := h.proxy.Credential(r.Header.Get(credential.Header))
	writeRawJSON(w, http.StatusOK, h.proxy.ListModels(r.Context(), key).Body)
}

func (h *handlers) tts(w http.ResponseWriter, r *http.Request) {
	var req proxy.SpeechRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := h.proxy.Credential(r.Header.Get(credential.Header))

	switch res := h.proxy.Synthesize(r.Context(), key, req).(type) {
	case proxy.Audio:
		w.Header().Set("Content-Type", res.ContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.Data); err != nil {
			h.log.Warn("failed to write audio", "error", err, "request_id", chimiddleware.GetReqID(r.Context()))
		}
	case proxy.Failure:
		writeError(w, res.Status, res.Message)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to generate speech")
	}
}

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

func apiMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
