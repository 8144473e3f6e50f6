package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// classifyStatus maps an HTTP status to an ErrorKind. Adapters refine this
// only when a vendor signals errors outside its status codes.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindInvalidRequest
	}
}

// ErrorMessage extracts a human-readable diagnostic from a vendor error
// payload. Vendors disagree on the envelope, so it probes the common shapes
// and falls back to the raw body.
func ErrorMessage(body []byte, status int) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return fmt.Sprintf("HTTP %d", status)
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`

		// Cohere and HuggingFace put the message at the top level.
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := decodeErrorField(envelope.Error); msg != "" {
			return fmt.Sprintf("HTTP %d: %s", status, msg)
		}
		if msg := strings.TrimSpace(envelope.Message); msg != "" {
			return fmt.Sprintf("HTTP %d: %s", status, msg)
		}
	}

	if len(raw) > 300 {
		raw = raw[:300]
	}
	return fmt.Sprintf("HTTP %d: %s", status, raw)
}

// decodeErrorField handles both `"error": "..."` and `"error": {"message": ...}`.
func decodeErrorField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

func jsonHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return h
}

func bearerHeader(apiKey string) http.Header {
	h := jsonHeader()
	h.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))
	return h
}
