package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a prompt id does not exist in the store.
var ErrNotFound = errors.New("store: prompt not found")

// ValidationError reports bad input to a mutating operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "store: validation error <nil>"
	}
	return fmt.Sprintf("store: invalid %s: %s", e.Field, e.Reason)
}

// Prompt is one stored unit of AI instruction text plus metadata.
// ID is opaque, unique for the store's lifetime, and never reused.
type Prompt struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Purpose    string    `json:"purpose,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	SessionRef string    `json:"session_ref,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

// Fields carries the user-supplied parts of a prompt for Create and Update.
type Fields struct {
	Title      string
	Body       string
	Purpose    string
	Tags       []string
	SessionRef string
	Notes      string
}

// Writer defines mutating access to the prompt library.
type Writer interface {
	Create(ctx context.Context, fields Fields) (*Prompt, error)
	Update(ctx context.Context, id string, fields Fields) (*Prompt, error)
	Duplicate(ctx context.Context, id string) (*Prompt, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, records []*Prompt) (int, error)
}

// Reader defines read access to the prompt library.
type Reader interface {
	Get(ctx context.Context, id string) (*Prompt, error)
	List(ctx context.Context) ([]*Prompt, error)
	Search(ctx context.Context, query string) ([]*Prompt, error)
}

// Maintenance defines whole-file operations on the backing store.
type Maintenance interface {
	Backup(dst string) error
	Restore(src string) error
}

// Store is the full prompt library contract.
type Store interface {
	Writer
	Reader
	Maintenance
	Close() error
}
