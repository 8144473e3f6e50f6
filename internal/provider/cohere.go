package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	cohereBaseURL = "https://api.cohere.com/v1/chat"
	cohereModel   = "command-r-plus"
)

// cohereAdapter speaks the Cohere chat API: a single message string with a
// preamble instead of a system role, and the reply text at the top level.
type cohereAdapter struct{}

func NewCohereAdapter() Adapter {
	return cohereAdapter{}
}

func (cohereAdapter) Name() ID {
	return Cohere
}

type cohereChatRequest struct {
	Model    string `json:"model"`
	Message  string `json:"message"`
	Preamble string `json:"preamble,omitempty"`
}

type cohereChatResponse struct {
	Text string `json:"text"`
}

func (cohereAdapter) BuildRequest(req *TuneRequest, profile Profile) (*WireRequest, error) {
	if err := validateCall(req, profile); err != nil {
		return nil, err
	}

	model := strings.TrimSpace(profile.Model)
	if model == "" {
		model = cohereModel
	}

	body, err := json.Marshal(cohereChatRequest{
		Model:    model,
		Message:  tuneMessage(req),
		Preamble: systemPrompt(profile),
	})
	if err != nil {
		return nil, fmt.Errorf("provider: cohere: marshal request: %w", err)
	}

	url := strings.TrimSpace(profile.BaseURL)
	if url == "" {
		url = cohereBaseURL
	}

	return &WireRequest{
		Method: http.MethodPost,
		URL:    url,
		Header: bearerHeader(profile.APIKey),
		Body:   body,
	}, nil
}

func (cohereAdapter) ParseResponse(body []byte, status int) (*TuneResult, error) {
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("provider: cohere: unexpected status %d", status)
	}

	var resp cohereChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider: cohere: decode response: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, errors.New("provider: cohere: empty completion")
	}

	return &TuneResult{
		Text:     text,
		Provider: Cohere,
		OK:       true,
	}, nil
}

func (cohereAdapter) ClassifyError(body []byte, status int) ErrorKind {
	return classifyStatus(status)
}
