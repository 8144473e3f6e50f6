package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-mini/internal/export"
	"github.com/stellarlinkco/prompt-mini/internal/stats"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

type promptRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Purpose    string   `json:"purpose"`
	Tags       []string `json:"tags"`
	SessionRef string   `json:"session_ref"`
	Notes      string   `json:"notes"`
}

func (r promptRequest) fields() store.Fields {
	return store.Fields{
		Title:      r.Title,
		Body:       r.Body,
		Purpose:    r.Purpose,
		Tags:       r.Tags,
		SessionRef: r.SessionRef,
		Notes:      r.Notes,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSearchPrompts(c *gin.Context) {
	prompts, err := s.store.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if prompts == nil {
		prompts = []*store.Prompt{}
	}
	c.JSON(http.StatusOK, prompts)
}

func (s *Server) handleCreatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	p, err := s.store.Create(c.Request.Context(), req.fields())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetPrompt(c *gin.Context) {
	p, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdatePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	p, err := s.store.Update(c.Request.Context(), c.Param("id"), req.fields())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePrompt(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDuplicatePrompt(c *gin.Context) {
	p, err := s.store.Duplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handlePromptStats(c *gin.Context) {
	p, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats.Measure(p.Body))
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	prompts, err := s.store.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	contentTypes := map[export.Format]string{
		export.FormatCSV:      "text/csv",
		export.FormatText:     "text/plain; charset=utf-8",
		export.FormatMarkdown: "text/markdown; charset=utf-8",
		export.FormatJSON:     "application/json",
	}
	c.Header("Content-Type", contentTypes[format])
	c.Status(http.StatusOK)

	if err := export.Write(c.Writer, format, prompts); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleImport(c *gin.Context) {
	var records []*store.Prompt
	if err := c.ShouldBindJSON(&records); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	n, err := s.store.Import(c.Request.Context(), records)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func respondStoreError(c *gin.Context, err error) {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, fmt.Errorf("prompt not found"))
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
