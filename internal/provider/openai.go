package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAICompatAdapter serves every vendor speaking the OpenAI chat
// completions dialect: OpenAI itself, Groq, OpenRouter, and the HuggingFace
// inference router. Wire types come from go-openai so the JSON stays honest.
type openAICompatAdapter struct {
	id           ID
	defaultURL   string
	defaultModel string
}

func NewOpenAIAdapter() Adapter {
	return &openAICompatAdapter{
		id:           OpenAI,
		defaultURL:   "https://api.openai.com/v1/chat/completions",
		defaultModel: "gpt-4o",
	}
}

func NewGroqAdapter() Adapter {
	return &openAICompatAdapter{
		id:           Groq,
		defaultURL:   "https://api.groq.com/openai/v1/chat/completions",
		defaultModel: "llama3-70b-8192",
	}
}

func NewOpenRouterAdapter() Adapter {
	return &openAICompatAdapter{
		id:           OpenRouter,
		defaultURL:   "https://openrouter.ai/api/v1/chat/completions",
		defaultModel: "anthropic/claude-3.5-sonnet",
	}
}

func NewHuggingFaceAdapter() Adapter {
	return &openAICompatAdapter{
		id:           HuggingFace,
		defaultURL:   "https://router.huggingface.co/v1/chat/completions",
		defaultModel: "meta-llama/Meta-Llama-3-8B-Instruct",
	}
}

func (a *openAICompatAdapter) Name() ID {
	return a.id
}

func (a *openAICompatAdapter) BuildRequest(req *TuneRequest, profile Profile) (*WireRequest, error) {
	if err := validateCall(req, profile); err != nil {
		return nil, err
	}

	model := strings.TrimSpace(profile.Model)
	if model == "" {
		model = a.defaultModel
	}

	wire := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(profile)},
			{Role: openai.ChatMessageRoleUser, Content: tuneMessage(req)},
		},
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: marshal request: %w", a.id, err)
	}

	url := strings.TrimSpace(profile.BaseURL)
	if url == "" {
		url = a.defaultURL
	}

	return &WireRequest{
		Method: http.MethodPost,
		URL:    url,
		Header: bearerHeader(profile.APIKey),
		Body:   body,
	}, nil
}

func (a *openAICompatAdapter) ParseResponse(body []byte, status int) (*TuneResult, error) {
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("provider: %s: unexpected status %d", a.id, status)
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider: %s: decode response: %w", a.id, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("provider: " + string(a.id) + ": empty choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, errors.New("provider: " + string(a.id) + ": empty completion")
	}

	return &TuneResult{
		Text:     text,
		Provider: a.id,
		Model:    resp.Model,
		OK:       true,
	}, nil
}

func (a *openAICompatAdapter) ClassifyError(body []byte, status int) ErrorKind {
	return classifyStatus(status)
}
