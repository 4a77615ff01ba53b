package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/mockdata"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/telemetry"
)

const (
	msgMissingFields  = "Missing text or voiceId"
	msgSynthesisError = "Failed to generate speech"
	msgSampleError    = "Không thể tải âm thanh mẫu."
)

// Default voice settings applied to any field a request leaves unset.
const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.5
	DefaultStyle           = 0.0
	DefaultSpeakerBoost    = true
)

// SpeechRequest is the body accepted by the synthesis route.
type SpeechRequest struct {
	Text     string                    `json:"text"`
	VoiceID  string                    `json:"voiceId"`
	ModelID  string                    `json:"modelId,omitempty"`
	Settings *elevenlabs.VoiceSettings `json:"settings,omitempty"`
}

// Result is either Audio or Failure.
type Result interface {
	isResult()
}

// Audio is a successful synthesis.
type Audio struct {
	Data        []byte
	ContentType string
	Source      telemetry.Source
}

// Failure is a synthesis that must be reported to the caller as
// {"error": Message} with Status.
type Failure struct {
	Status  int
	Message string
}

func (Audio) isResult()   {}
func (Failure) isResult() {}

// Synthesize runs one synthesis request. The mock path is taken when key is
// unusable or the voice is a mock-only locale voice; an upstream 404 also
// falls back to it. Every other upstream failure becomes a Failure.
func (s *Service) Synthesize(ctx context.Context, key string, req SpeechRequest) Result {
	if req.Text == "" || req.VoiceID == "" {
		return Failure{Status: http.StatusBadRequest, Message: msgMissingFields}
	}

	logEntry := s.log.With(
		"voice_id", req.VoiceID,
		"text_length", len(req.Text),
	)

	if !credential.Usable(key) || mockdata.IsMockVoice(req.VoiceID) {
		logEntry.Debug("serving mock audio",
			"credential_usable", credential.Usable(key),
			"mock_voice", mockdata.IsMockVoice(req.VoiceID),
		)
		return s.mockAudio(ctx, req.VoiceID)
	}

	start := time.Now()
	audio, err := s.upstream.Synthesize(ctx, key, req.VoiceID, upstreamRequest(req))
	if err == nil {
		s.metrics.Synthesis(telemetry.SourceUpstream, req.VoiceID, len(audio), time.Since(start))
		return Audio{Data: audio, ContentType: elevenlabs.AudioMIME, Source: telemetry.SourceUpstream}
	}

	if elevenlabs.IsNotFound(err) {
		logEntry.Warn("voice not found upstream, falling back to mock audio")
		return s.mockAudio(ctx, req.VoiceID)
	}

	failure := upstreamFailure(err)
	logEntry.Error("upstream synthesis failed", "error", err)
	s.metrics.SynthesisFailed(req.VoiceID, failure.Status, failure.Message)
	return failure
}

func (s *Service) mockAudio(ctx context.Context, voiceID string) Result {
	start := time.Now()

	if s.mockDelay > 0 {
		timer := time.NewTimer(s.mockDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Failure{Status: http.StatusInternalServerError, Message: msgSampleError}
		case <-timer.C:
		}
	}

	data, err := s.sample.Fetch(ctx)
	if err != nil {
		s.log.Error("mock sample fetch failed", "voice_id", voiceID, "error", err)
		s.metrics.SynthesisFailed(voiceID, http.StatusInternalServerError, msgSampleError)
		return Failure{Status: http.StatusInternalServerError, Message: msgSampleError}
	}

	s.metrics.Synthesis(telemetry.SourceMock, voiceID, len(data), time.Since(start))
	return Audio{Data: data, ContentType: elevenlabs.AudioMIME, Source: telemetry.SourceMock}
}

func upstreamRequest(req SpeechRequest) elevenlabs.SynthesizeRequest {
	modelID := req.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	return elevenlabs.SynthesizeRequest{
		Text:          req.Text,
		ModelID:       modelID,
		VoiceSettings: withDefaults(req.Settings),
	}
}

// withDefaults returns a copy of settings with every unset field defaulted.
func withDefaults(settings *elevenlabs.VoiceSettings) *elevenlabs.VoiceSettings {
	out := elevenlabs.VoiceSettings{}
	if settings != nil {
		out = *settings
	}
	if out.Stability == nil {
		out.Stability = float64Ptr(DefaultStability)
	}
	if out.SimilarityBoost == nil {
		out.SimilarityBoost = float64Ptr(DefaultSimilarityBoost)
	}
	if out.Style == nil {
		out.Style = float64Ptr(DefaultStyle)
	}
	if out.UseSpeakerBoost == nil {
		v := DefaultSpeakerBoost
		out.UseSpeakerBoost = &v
	}
	return &out
}

func upstreamFailure(err error) Failure {
	var apiErr *elevenlabs.APIError
	if !errors.As(err, &apiErr) {
		return Failure{Status: http.StatusInternalServerError, Message: msgSynthesisError}
	}

	status := apiErr.StatusCode
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	msg := apiErr.Message()
	if msg == "" {
		msg = msgSynthesisError
	}
	return Failure{Status: status, Message: msg}
}

func float64Ptr(v float64) *float64 {
	return &v
}
