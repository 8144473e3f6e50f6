package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("PROMPT_MINI_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("PROMPT_MINI_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set PROMPT_MINI_API_KEY or set PROMPT_MINI_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/prompts", s.handleSearchPrompts)
	api.POST("/prompts", s.handleCreatePrompt)
	api.GET("/prompts/:id", s.handleGetPrompt)
	api.PUT("/prompts/:id", s.handleUpdatePrompt)
	api.DELETE("/prompts/:id", s.handleDeletePrompt)
	api.POST("/prompts/:id/duplicate", s.handleDuplicatePrompt)
	api.GET("/prompts/:id/stats", s.handlePromptStats)

	api.GET("/export", s.handleExport)
	api.POST("/import", s.handleImport)

	api.POST("/tune", s.handleSubmitTune)
	api.GET("/tune/:id", s.handleGetTune)
	api.POST("/tune/:id/cancel", s.handleCancelTune)
	api.POST("/tune/:id/save", s.handleSaveTune)

	return nil
}
