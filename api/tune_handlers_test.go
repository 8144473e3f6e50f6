package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stellarlinkco/prompt-mini/internal/config"
	"github.com/stellarlinkco/prompt-mini/internal/gateway"
)

const vendorCompletion = `{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":"a sharper prompt"}}]}`

func tuneConfig(baseURL string) *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			Default: "openai",
			Profiles: map[string]config.ProviderConfig{
				"openai": {APIKey: "test-key", Model: "gpt-4o", BaseURL: baseURL},
			},
		},
	}
}

func submitTune(t *testing.T, s *Server, body string) tuneStatus {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/tune", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	var status tuneStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if status.ID == "" {
		t.Fatalf("submit: empty tune id")
	}
	return status
}

func pollTune(t *testing.T, s *Server, id string) tuneStatus {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := doJSON(t, s, http.MethodGet, "/api/tune/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("poll: status %d", rec.Code)
		}
		var status tuneStatus
		if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
			t.Fatalf("decode poll: %v", err)
		}
		if status.State.Terminal() {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("tune %s never finished, state %s", id, status.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTune_SubmitAndPoll(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(vendorCompletion))
	}))
	defer vendor.Close()

	s := newTestServer(t, tuneConfig(vendor.URL))
	p := createPrompt(t, s, `{"title":"Draft","body":"make this better"}`)

	status := submitTune(t, s, `{"prompt_id":"`+p.ID+`"}`)
	final := pollTune(t, s, status.ID)

	if final.State != gateway.StateSucceeded {
		t.Fatalf("state: %s", final.State)
	}
	if final.Result == nil || final.Result.Text != "a sharper prompt" {
		t.Fatalf("result: %+v", final.Result)
	}
	if len(final.Attempts) != 1 {
		t.Fatalf("attempts: %d", len(final.Attempts))
	}

	// The refined text was not written back to the stored prompt.
	rec := doJSON(t, s, http.MethodGet, "/api/prompts/"+p.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var stored struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.Body != "make this better" {
		t.Fatalf("stored body changed: %q", stored.Body)
	}
}

func TestTune_SubmitWithRawText(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(vendorCompletion))
	}))
	defer vendor.Close()

	s := newTestServer(t, tuneConfig(vendor.URL))

	status := submitTune(t, s, `{"text":"ad-hoc text","instruction":"shorten this"}`)
	final := pollTune(t, s, status.ID)
	if final.State != gateway.StateSucceeded {
		t.Fatalf("state: %s", final.State)
	}
}

func TestTune_SubmitValidation(t *testing.T) {
	s := newTestServer(t, tuneConfig("http://unused"))

	rec := doJSON(t, s, http.MethodPost, "/api/tune", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty submit: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/tune", `{"text":"x","provider":"bard"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/tune", `{"prompt_id":"p_missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing prompt: status %d", rec.Code)
	}
}

func TestTune_GetUnknown(t *testing.T) {
	s := newTestServer(t, tuneConfig("http://unused"))

	rec := doJSON(t, s, http.MethodGet, "/api/tune/t_missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestTune_Cancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(vendorCompletion))
	}))
	defer vendor.Close()
	defer close(release)

	s := newTestServer(t, tuneConfig(vendor.URL))

	status := submitTune(t, s, `{"text":"slow one"}`)
	<-started

	rec := doJSON(t, s, http.MethodPost, "/api/tune/"+status.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d: %s", rec.Code, rec.Body.String())
	}

	final := pollTune(t, s, status.ID)
	if final.State != gateway.StateCancelled {
		t.Fatalf("state: %s", final.State)
	}

	// Cancelling a settled handle conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/tune/"+status.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: status %d", rec.Code)
	}
}

func TestTune_Save(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(vendorCompletion))
	}))
	defer vendor.Close()

	s := newTestServer(t, tuneConfig(vendor.URL))

	status := submitTune(t, s, `{"text":"original"}`)
	pollTune(t, s, status.ID)

	rec := doJSON(t, s, http.MethodPost, "/api/tune/"+status.ID+"/save", `{"tags":["tuned"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: status %d: %s", rec.Code, rec.Body.String())
	}
	var saved struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.Body != "a sharper prompt" {
		t.Fatalf("saved body: %q", saved.Body)
	}
	if saved.Title != "Tuned (openai)" {
		t.Fatalf("saved title: %q", saved.Title)
	}
	if len(saved.Tags) != 1 || saved.Tags[0] != "tuned" {
		t.Fatalf("saved tags: %v", saved.Tags)
	}
}

func TestTune_SettledHandlesEvicted(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(vendorCompletion))
	}))
	defer vendor.Close()

	s := newTestServer(t, tuneConfig(vendor.URL))
	s.tuneLimit = 2

	first := submitTune(t, s, `{"text":"one"}`)
	pollTune(t, s, first.ID)
	second := submitTune(t, s, `{"text":"two"}`)
	pollTune(t, s, second.ID)

	// The map is full of settled handles; the next submit sweeps them.
	third := submitTune(t, s, `{"text":"three"}`)
	pollTune(t, s, third.ID)

	s.mu.Lock()
	_, firstKept := s.tunes[first.ID]
	_, thirdKept := s.tunes[third.ID]
	size := len(s.tunes)
	s.mu.Unlock()

	if firstKept {
		t.Fatalf("settled handle %s still tracked", first.ID)
	}
	if !thirdKept {
		t.Fatalf("fresh handle %s missing", third.ID)
	}
	if size > 2 {
		t.Fatalf("tracked handles: %d, want at most 2", size)
	}
}

func TestTune_SaveRequiresSuccess(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer vendor.Close()

	s := newTestServer(t, tuneConfig(vendor.URL))

	status := submitTune(t, s, `{"text":"original"}`)
	final := pollTune(t, s, status.ID)
	if final.State != gateway.StateFailed {
		t.Fatalf("state: %s", final.State)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/tune/"+status.ID+"/save", `{}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("save failed tune: status %d", rec.Code)
	}
}
