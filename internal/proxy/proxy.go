// Package proxy decides, per request, whether the ElevenLabs API or the mock
// data answers, and normalizes both into the shapes served to clients.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/mockdata"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/telemetry"
)

const (
	// DefaultModelID is used when a synthesis request names no model.
	DefaultModelID = "eleven_multilingual_v2"

	// DefaultMockDelay models synthesis latency on the mock path.
	DefaultMockDelay = 1500 * time.Millisecond

	routeVoices = "voices"
	routeModels = "models"
)

// Options configures a Service.
type Options struct {
	// DefaultKey is the process-wide credential used when a request carries none.
	DefaultKey string
	// MockDelay is the artificial wait before the mock sample is fetched.
	// Zero selects DefaultMockDelay; use a negative value to disable it.
	MockDelay time.Duration
}

// Service implements the three proxied operations. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	upstream   elevenlabs.Upstream
	sample     mockdata.SampleSource
	defaultKey string
	mockDelay  time.Duration
	log        *slog.Logger
	metrics    *telemetry.Recorder
}

// New returns a Service.
func New(upstream elevenlabs.Upstream, sample mockdata.SampleSource, opts Options, logger *slog.Logger, metrics *telemetry.Recorder) *Service {
	if upstream == nil {
		panic("proxy: upstream must not be nil")
	}
	if sample == nil {
		panic("proxy: sample source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder(logger)
	}

	delay := opts.MockDelay
	switch {
	case delay == 0:
		delay = DefaultMockDelay
	case delay < 0:
		delay = 0
	}

	return &Service{
		upstream:   upstream,
		sample:     sample,
		defaultKey: opts.DefaultKey,
		mockDelay:  delay,
		log:        logger.With("component", "proxy"),
		metrics:    metrics,
	}
}

// Credential resolves the effective credential for a request from its
// header value and the configured default.
func (s *Service) Credential(header string) string {
	return credential.Resolve(header, s.defaultKey)
}

// Catalog is a ready-to-serve JSON body for a catalog route.
type Catalog struct {
	Body   json.RawMessage
	IsMock bool
}

type voicesEnvelope struct {
	Voices []elevenlabs.Voice `json:"voices"`
	IsMock bool               `json:"is_mock"`
}

// ListVoices returns the live voice catalog for key, or the mock catalog when
// key is unusable or the upstream call fails. It never fails.
func (s *Service) ListVoices(ctx context.Context, key string) Catalog {
	if !credential.Usable(key) {
		return mockVoices()
	}

	start := time.Now()
	raw, err := s.upstream.ListVoices(ctx, key)
	if err == nil {
		var body []byte
		body, err = tagVoices(raw)
		if err == nil {
			s.metrics.Catalog(routeVoices, telemetry.SourceUpstream, time.Since(start))
			return Catalog{Body: body}
		}
	}

	s.metrics.Fallback(routeVoices, elevenlabs.IsAuth(err), err)
	return mockVoices()
}

// ListModels returns the live model catalog for key as the API shapes it, or
// the mock catalog when key is unusable or the upstream call fails. It never
// fails.
func (s *Service) ListModels(ctx context.Context, key string) Catalog {
	if !credential.Usable(key) {
		return mockModels()
	}

	start := time.Now()
	raw, err := s.upstream.ListModels(ctx, key)
	if err != nil {
		s.metrics.Fallback(routeModels, elevenlabs.IsAuth(err), err)
		return mockModels()
	}

	s.metrics.Catalog(routeModels, telemetry.SourceUpstream, time.Since(start))
	return Catalog{Body: raw}
}

// tagVoices adds is_mock=false to the upstream object, leaving every other
// field untouched.
func tagVoices(raw json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("proxy: decode voices: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("proxy: decode voices: null payload")
	}
	fields["is_mock"] = json.RawMessage("false")
	return json.Marshal(fields)
}

func mockVoices() Catalog {
	body, err := json.Marshal(voicesEnvelope{Voices: mockdata.Voices(), IsMock: true})
	if err != nil {
		panic(fmt.Sprintf("proxy: encode mock voices: %v", err))
	}
	return Catalog{Body: body, IsMock: true}
}

func mockModels() Catalog {
	body, err := json.Marshal(mockdata.Models())
	if err != nil {
		panic(fmt.Sprintf("proxy: encode mock models: %v", err))
	}
	return Catalog{Body: body, IsMock: true}
}
