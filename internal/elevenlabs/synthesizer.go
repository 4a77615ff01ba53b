package elevenlabs

import (
	"context"
	"encoding/json"
)

// Upstream abstracts the ElevenLabs API so that the proxy can be tested with
// a fake implementation.
type Upstream interface {
	ListVoices(ctx context.Context, apiKey string) (json.RawMessage, error)
	ListModels(ctx context.Context, apiKey string) (json.RawMessage, error)
	Synthesize(ctx context.Context, apiKey, voiceID string, req SynthesizeRequest) ([]byte, error)
}

var _ Upstream = (*Client)(nil)
