package elevenlabs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for any non-200 response. Body holds the raw response
// payload, which is JSON even when audio was requested.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("elevenlabs: API error (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("elevenlabs: API error (status %d)", e.StatusCode)
}

// Message extracts a human-readable message from the error body. It checks
// detail.message, then error.message, then plain string detail or error
// fields. It returns "" when none are present or the body is not JSON.
func (e *APIError) Message() string {
	return decodeMessage(e.Body)
}

func decodeMessage(body []byte) string {
	text := strings.ToValidUTF8(string(body), "")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return ""
	}

	if msg := nestedMessage(payload.Detail); msg != "" {
		return msg
	}
	if msg := nestedMessage(payload.Error); msg != "" {
		return msg
	}
	if msg := plainString(payload.Detail); msg != "" {
		return msg
	}
	return plainString(payload.Error)
}

func nestedMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return strings.TrimSpace(obj.Message)
}

func plainString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// StatusCode returns the HTTP status of an upstream rejection, or 0 when err
// did not come from an API response (transport failure, timeout).
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsAuth reports whether err is a 401 or 403 rejection.
func IsAuth(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 rejection.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
