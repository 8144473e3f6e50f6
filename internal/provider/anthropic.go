package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1"
	anthropicModel      = "claude-sonnet-4-5-20250929"
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 4096
)

// anthropicAdapter speaks the Anthropic messages API. The SDK's param and
// message types do the JSON; auth rides the x-api-key header.
type anthropicAdapter struct{}

func NewAnthropicAdapter() Adapter {
	return anthropicAdapter{}
}

func (anthropicAdapter) Name() ID {
	return Anthropic
}

func (anthropicAdapter) BuildRequest(req *TuneRequest, profile Profile) (*WireRequest, error) {
	if err := validateCall(req, profile); err != nil {
		return nil, err
	}

	model := strings.TrimSpace(profile.Model)
	if model == "" {
		model = anthropicModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(tuneMessage(req))),
		},
		System: []anthropic.TextBlockParam{{
			Text: systemPrompt(profile),
			Type: "text",
		}},
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("provider: anthropic: marshal request: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(profile.BaseURL), "/")
	if base == "" {
		base = anthropicBaseURL
	}

	h := jsonHeader()
	h.Set("x-api-key", strings.TrimSpace(profile.APIKey))
	h.Set("anthropic-version", anthropicAPIVersion)

	return &WireRequest{
		Method: http.MethodPost,
		URL:    base + "/messages",
		Header: h,
		Body:   body,
	}, nil
}

func (anthropicAdapter) ParseResponse(body []byte, status int) (*TuneResult, error) {
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("provider: anthropic: unexpected status %d", status)
	}

	var msg anthropic.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("provider: anthropic: decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, errors.New("provider: anthropic: empty completion")
	}

	return &TuneResult{
		Text:     text,
		Provider: Anthropic,
		Model:    string(msg.Model),
		OK:       true,
	}, nil
}

func (anthropicAdapter) ClassifyError(body []byte, status int) ErrorKind {
	// Overload (529) falls in the transient 5xx bucket like the rest.
	return classifyStatus(status)
}
