package telemetry

import (
	"log/slog"
	"time"
)

// Source names where a response came from.
type Source string

const (
	SourceUpstream Source = "upstream"
	SourceMock     Source = "mock"
)

// Recorder centralises telemetry for the studio proxy. It only emits
// structured logs via slog.
type Recorder struct {
	logger *slog.Logger
}

// NewRecorder constructs a telemetry recorder using the provided slog.Logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger.With("component", "telemetry")}
}

// Logger returns the underlying slog.Logger for direct use.
func (r *Recorder) Logger() *slog.Logger {
	return r.logger
}

// Catalog records which source served a catalog route.
func (r *Recorder) Catalog(route string, source Source, elapsed time.Duration) {
	r.logger.Debug("catalog served",
		"route", route,
		"source", string(source),
		"duration_ms", elapsed.Milliseconds(),
	)
}

// Fallback records a degradation to mock data. auth distinguishes explicit
// credential rejections from other failures.
func (r *Recorder) Fallback(route string, auth bool, err error) {
	if auth {
		r.logger.Warn("invalid API key provided, falling back to mock data",
			"route", route,
			"error", err,
		)
		return
	}
	r.logger.Error("upstream request failed, falling back to mock data",
		"route", route,
		"error", err,
	)
}

// Synthesis records a completed synthesis.
func (r *Recorder) Synthesis(source Source, voiceID string, bytes int, elapsed time.Duration) {
	r.logger.Info("synthesis completed",
		"source", string(source),
		"voice_id", voiceID,
		"bytes", bytes,
		"duration_sec", elapsed.Seconds(),
	)
}

// SynthesisFailed records a synthesis that ended in an error response.
func (r *Recorder) SynthesisFailed(voiceID string, status int, message string) {
	r.logger.Error("synthesis failed",
		"voice_id", voiceID,
		"status", status,
		"message", message,
	)
}
