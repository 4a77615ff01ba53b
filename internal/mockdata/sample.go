package mockdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// SampleURL is the public MP3 served in place of real synthesis.
	SampleURL = "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"

	// DefaultSampleTimeout bounds the sample download.
	DefaultSampleTimeout = 5 * time.Second

	maxSampleBytes = 32 << 20
)

// SampleSource produces the stand-in audio for mock synthesis.
type SampleSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// RemoteSample downloads the sample on every call. Nothing is retained.
type RemoteSample struct {
	httpClient *http.Client
	url        string
}

// NewRemoteSample returns a source fetching url (SampleURL when empty) with
// the given timeout (DefaultSampleTimeout when non-positive).
func NewRemoteSample(url string, timeout time.Duration) *RemoteSample {
	if url == "" {
		url = SampleURL
	}
	if timeout <= 0 {
		timeout = DefaultSampleTimeout
	}
	return &RemoteSample{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Fetch downloads the sample.
func (s *RemoteSample) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("mockdata: create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mockdata: fetch sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mockdata: fetch sample: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSampleBytes))
	if err != nil {
		return nil, fmt.Errorf("mockdata: read sample: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("mockdata: sample is empty")
	}
	return data, nil
}

// StaticSample returns deterministic silent MP3 frames without touching the
// network. It is intended for CI and offline environments.
type StaticSample struct {
	log    *slog.Logger
	frames int
}

const (
	// 128 kbit/s, 44.1 kHz, MPEG-1 Layer III, no padding: 417 bytes per frame.
	silentFrameSize = 417
	// ~1 second of audio.
	defaultSilentFrames = 38
)

var silentFrameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

// NewStaticSample returns a static source. The logger may be nil.
func NewStaticSample(logger *slog.Logger) *StaticSample {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticSample{log: logger, frames: defaultSilentFrames}
}

// Fetch returns the silent sample.
func (s *StaticSample) Fetch(_ context.Context) ([]byte, error) {
	frame := make([]byte, silentFrameSize)
	copy(frame, silentFrameHeader)
	data := bytes.Repeat(frame, s.frames)

	s.log.Debug("static sample served", "bytes", len(data))
	return data, nil
}
