package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	googleModel   = "gemini-2.5-pro"
)

// googleAdapter speaks the Gemini generateContent API. Gemini has no system
// role in this dialect; the system prompt is folded into the user turn. Auth
// rides a query parameter, not a header.
type googleAdapter struct{}

func NewGoogleAdapter() Adapter {
	return googleAdapter{}
}

func (googleAdapter) Name() ID {
	return Google
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerateRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (googleAdapter) BuildRequest(req *TuneRequest, profile Profile) (*WireRequest, error) {
	if err := validateCall(req, profile); err != nil {
		return nil, err
	}

	model := strings.TrimSpace(profile.Model)
	if model == "" {
		model = googleModel
	}

	full := strings.TrimSpace(systemPrompt(profile) + "\n\n" + tuneMessage(req))
	body, err := json.Marshal(googleGenerateRequest{
		Contents: []googleContent{{
			Parts: []googlePart{{Text: full}},
			Role:  "user",
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: google: marshal request: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(profile.BaseURL), "/")
	if base == "" {
		base = googleBaseURL
	}

	endpoint := fmt.Sprintf(
		"%s/models/%s:generateContent?key=%s",
		base, url.PathEscape(model), url.QueryEscape(strings.TrimSpace(profile.APIKey)),
	)

	return &WireRequest{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: jsonHeader(),
		Body:   body,
	}, nil
}

func (googleAdapter) ParseResponse(body []byte, status int) (*TuneResult, error) {
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("provider: google: unexpected status %d", status)
	}

	var resp googleGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider: google: decode response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("provider: google: empty candidates")
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, errors.New("provider: google: empty completion")
	}

	return &TuneResult{
		Text:     text,
		Provider: Google,
		OK:       true,
	}, nil
}

func (googleAdapter) ClassifyError(body []byte, status int) ErrorKind {
	// Gemini signals an invalid key as a 400 with status INVALID_ARGUMENT.
	if status == http.StatusBadRequest {
		var resp struct {
			Error struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &resp); err == nil {
			msg := strings.ToLower(resp.Error.Message)
			if strings.Contains(msg, "api key") || strings.Contains(msg, "api_key") {
				return KindAuth
			}
		}
	}
	return classifyStatus(status)
}
