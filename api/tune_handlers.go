package api

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-mini/internal/gateway"
	"github.com/stellarlinkco/prompt-mini/internal/provider"
)

type tuneRequest struct {
	PromptID    string `json:"prompt_id"`
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	APIKey      string `json:"api_key"`
	System      string `json:"system"`
}

type tuneStatus struct {
	ID       string               `json:"id"`
	State    gateway.State        `json:"state"`
	Result   *provider.TuneResult `json:"result,omitempty"`
	Attempts []gateway.Attempt    `json:"attempts,omitempty"`
}

// handleSubmitTune starts a background tuning interaction and returns the
// handle id immediately; the caller polls GET /tune/:id for the outcome.
func (s *Server) handleSubmitTune(c *gin.Context) {
	var req tuneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	text := req.Text
	if strings.TrimSpace(text) == "" && strings.TrimSpace(req.PromptID) != "" {
		p, err := s.store.Get(c.Request.Context(), req.PromptID)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		text = p.Body
	}
	if strings.TrimSpace(text) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing prompt text"))
		return
	}

	profile, err := provider.ProfileFromConfig(s.config, req.Provider)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if v := strings.TrimSpace(req.APIKey); v != "" {
		profile.APIKey = v
	}
	if v := strings.TrimSpace(req.Model); v != "" {
		profile.Model = v
	}
	if v := strings.TrimSpace(req.System); v != "" {
		profile.System = v
	}

	// The handle must outlive this request; the request context dies when
	// the response is written.
	h, err := s.gateway.Submit(context.Background(), &provider.TuneRequest{
		Text:        text,
		Instruction: req.Instruction,
	}, profile, nil)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	id, err := newTuneID()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	s.trackTune(id, h)

	c.JSON(http.StatusAccepted, tuneStatus{ID: id, State: h.State()})
}

func (s *Server) handleGetTune(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	h, ok := s.lookupTune(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("tune %q not found", id))
		return
	}

	status := tuneStatus{
		ID:       id,
		State:    h.State(),
		Attempts: h.Attempts(),
	}
	if res, done := h.Result(); done {
		status.Result = res
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleCancelTune(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	h, ok := s.lookupTune(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("tune %q not found", id))
		return
	}

	if !h.Cancel() {
		respondError(c, http.StatusConflict, fmt.Errorf("tune %q is %s, not in flight", id, h.State()))
		return
	}
	c.JSON(http.StatusOK, tuneStatus{ID: id, State: h.State()})
}

// handleSaveTune persists a succeeded tuning result as a new prompt. Refined
// text is only ever written back on this explicit request.
func (s *Server) handleSaveTune(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	h, ok := s.lookupTune(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("tune %q not found", id))
		return
	}

	res, done := h.Result()
	if !done || res == nil || !res.OK {
		respondError(c, http.StatusConflict, fmt.Errorf("tune %q has no successful result", id))
		return
	}

	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	fields := req.fields()
	fields.Body = res.Text
	if strings.TrimSpace(fields.Title) == "" {
		fields.Title = fmt.Sprintf("Tuned (%s)", res.Provider)
	}

	p, err := s.store.Create(c.Request.Context(), fields)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func newTuneID() (string, error) {
	var buf [6]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", fmt.Errorf("api: generate tune id: %w", err)
	}
	return fmt.Sprintf("t_%x", buf), nil
}
