package api

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-mini/internal/config"
	"github.com/stellarlinkco/prompt-mini/internal/gateway"
	"github.com/stellarlinkco/prompt-mini/internal/store"
)

// Server is the HTTP surface over the prompt store and the tuning gateway.
// It talks to both strictly through their contracts; the index and the
// vendor wire formats stay invisible here.
type Server struct {
	router  *gin.Engine
	store   store.Store
	gateway *gateway.Gateway
	config  *config.Config

	mu        sync.Mutex
	tunes     map[string]*gateway.Handle
	tuneLimit int
}

// defaultTuneLimit bounds the tracked-handle map; settled handles are
// evicted once the map fills up.
const defaultTuneLimit = 1024

func NewServer(cfg *config.Config, st store.Store, gw *gateway.Gateway) (*Server, error) {
	r := gin.New()
	s := &Server{
		router:    r,
		store:     st,
		gateway:   gw,
		config:    cfg,
		tunes:     make(map[string]*gateway.Handle),
		tuneLimit: defaultTuneLimit,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}

func (s *Server) trackTune(id string, h *gateway.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tunes) >= s.tuneLimit {
		for k, old := range s.tunes {
			if old.State().Terminal() {
				delete(s.tunes, k)
			}
		}
	}
	s.tunes[id] = h
}

func (s *Server) lookupTune(id string) (*gateway.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.tunes[id]
	return h, ok
}
