// Package provider normalizes the vendor APIs used for prompt tuning behind
// one adapter contract. Each adapter owns its vendor's auth header shape,
// request/response JSON, and error payload; nothing outside this package
// branches on vendor identity.
package provider

import (
	"fmt"
	"net/http"
	"strings"
)

// ID names one of the supported vendors.
type ID string

const (
	OpenAI      ID = "openai"
	Anthropic   ID = "anthropic"
	Google      ID = "google"
	Cohere      ID = "cohere"
	HuggingFace ID = "huggingface"
	Groq        ID = "groq"
	OpenRouter  ID = "openrouter"
)

// All lists the supported providers in a stable order.
func All() []ID {
	return []ID{OpenAI, Anthropic, Google, Cohere, HuggingFace, Groq, OpenRouter}
}

// ParseID resolves a user-supplied provider name.
func ParseID(name string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return OpenAI, nil
	case "anthropic", "claude":
		return Anthropic, nil
	case "google", "gemini":
		return Google, nil
	case "cohere":
		return Cohere, nil
	case "huggingface", "hf":
		return HuggingFace, nil
	case "groq":
		return Groq, nil
	case "openrouter":
		return OpenRouter, nil
	default:
		return "", fmt.Errorf("provider: unknown provider %q", name)
	}
}

// Profile carries per-session vendor settings. The credential lives only
// here for the duration of a tuning session and is never persisted.
type Profile struct {
	Provider ID
	APIKey   string
	Model    string
	BaseURL  string
	System   string
}

// TuneRequest asks a vendor for a refined version of a prompt.
type TuneRequest struct {
	Text        string
	Instruction string
}

// TuneResult is the normalized outcome of one tuning interaction.
type TuneResult struct {
	Text       string
	Provider   ID
	Model      string
	OK         bool
	Diagnostic string
}

// ErrorKind classifies a failed vendor interaction for the retry policy.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindRateLimited    ErrorKind = "rate_limited"
	KindTransient      ErrorKind = "transient_server"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindNetwork        ErrorKind = "network"
)

// Retryable reports whether the gateway should retry with backoff.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTransient, KindNetwork:
		return true
	default:
		return false
	}
}

// WireRequest is one fully built vendor HTTP call.
type WireRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Adapter translates between the normalized tuning contract and one
// vendor's wire format.
type Adapter interface {
	Name() ID
	BuildRequest(req *TuneRequest, profile Profile) (*WireRequest, error)
	ParseResponse(body []byte, status int) (*TuneResult, error)
	ClassifyError(body []byte, status int) ErrorKind
}

const defaultSystem = "You are a helpful assistant."

const defaultInstruction = "Please help me improve this AI prompt:"

// tuneMessage builds the user-facing message for a tuning call.
func tuneMessage(req *TuneRequest) string {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = defaultInstruction
	}
	return instruction + "\n\n" + req.Text
}

func systemPrompt(profile Profile) string {
	if s := strings.TrimSpace(profile.System); s != "" {
		return s
	}
	return defaultSystem
}

func validateCall(req *TuneRequest, profile Profile) error {
	if req == nil {
		return fmt.Errorf("provider: nil tune request")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("provider: empty prompt text")
	}
	if strings.TrimSpace(profile.APIKey) == "" {
		return fmt.Errorf("provider: %s: missing api key", profile.Provider)
	}
	return nil
}
