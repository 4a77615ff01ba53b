package credential

import "strings"

const (
	// MinLength is the number of characters a key must exceed before an
	// upstream call is attempted. ElevenLabs keys are 32 characters long.
	MinLength = 20

	// Placeholder is the marker left in unedited .env templates.
	Placeholder = "YOUR_API_KEY"

	// Header carries a per-request credential from the client.
	Header = "x-elevenlabs-key"
)

// Usable reports whether key is well-formed enough to try against the
// upstream API. It never contacts the upstream service; a usable key can
// still be rejected there.
func Usable(key string) bool {
	if key == "" {
		return false
	}
	return len(key) > MinLength && !strings.Contains(key, Placeholder)
}

// Resolve returns the effective credential for a request. A header value
// takes precedence over the process-wide fallback; a blank header counts as
// absent.
func Resolve(header, fallback string) string {
	if v := strings.TrimSpace(header); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}
