package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/prompt-mini/internal/index"
)

// SQLiteStore implements Store over a single SQLite file. The prompt table
// and the derived token index live in the same file and are always written
// inside one transaction, so a reader sees either the pre- or post-state of
// a mutation, never a partial one.
type SQLiteStore struct {
	path string

	// mu serializes mutations and whole-file operations. Reads go straight
	// to the database; WAL mode lets them run alongside a writer.
	mu sync.Mutex
	db *sql.DB

	insertPromptStmt *sql.Stmt
	updatePromptStmt *sql.Stmt
	getPromptStmt    *sql.Stmt
	deletePromptStmt *sql.Stmt
	listPromptsStmt  *sql.Stmt
	deleteTokensStmt *sql.Stmt
	insertTokenStmt  *sql.Stmt
}

var sqliteOpen = sql.Open

// NewSQLiteStore opens or creates a prompt store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	st := &SQLiteStore{path: path}
	if err := st.open(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) open() error {
	db, err := sqliteOpen("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("store: ping sqlite: %w", err)
	}
	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	if err := s.prepareStatements(); err != nil {
		_ = s.closeLocked()
		return err
	}
	return nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			purpose TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			session_ref TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created INTEGER NOT NULL,
			modified INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prompt_tokens (
			token TEXT NOT NULL,
			prompt_id TEXT NOT NULL,
			freq INTEGER NOT NULL,
			PRIMARY KEY (token, prompt_id),
			FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompt_tokens_prompt ON prompt_tokens(prompt_id)`,
		`CREATE INDEX IF NOT EXISTS idx_prompts_modified ON prompts(modified)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertPromptStmt,
			query: `
				INSERT INTO prompts (
					id, title, body, purpose, tags, session_ref, notes, created, modified
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert prompt: %w",
		},
		{
			dst: &s.updatePromptStmt,
			query: `
				UPDATE prompts
				SET title = ?, body = ?, purpose = ?, tags = ?, session_ref = ?, notes = ?, modified = ?
				WHERE id = ?
			`,
			errFmt: "store: prepare update prompt: %w",
		},
		{
			dst: &s.getPromptStmt,
			query: `
				SELECT id, title, body, purpose, tags, session_ref, notes, created, modified
				FROM prompts WHERE id = ?
			`,
			errFmt: "store: prepare get prompt: %w",
		},
		{
			dst:    &s.deletePromptStmt,
			query:  `DELETE FROM prompts WHERE id = ?`,
			errFmt: "store: prepare delete prompt: %w",
		},
		{
			dst: &s.listPromptsStmt,
			query: `
				SELECT id, title, body, purpose, tags, session_ref, notes, created, modified
				FROM prompts
				ORDER BY modified DESC, created DESC, id ASC
			`,
			errFmt: "store: prepare list prompts: %w",
		},
		{
			dst:    &s.deleteTokensStmt,
			query:  `DELETE FROM prompt_tokens WHERE prompt_id = ?`,
			errFmt: "store: prepare delete tokens: %w",
		},
		{
			dst:    &s.insertTokenStmt,
			query:  `INSERT INTO prompt_tokens (token, prompt_id, freq) VALUES (?, ?, ?)`,
			errFmt: "store: prepare insert token: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SQLiteStore) closeLocked() error {
	stmts := []*sql.Stmt{
		s.insertPromptStmt,
		s.updatePromptStmt,
		s.getPromptStmt,
		s.deletePromptStmt,
		s.listPromptsStmt,
		s.deleteTokensStmt,
		s.insertTokenStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Create validates fields, assigns a fresh id, and persists the prompt with
// its index entry in one transaction. Both timestamps are set to now.
func (s *SQLiteStore) Create(ctx context.Context, fields Fields) (*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if strings.TrimSpace(fields.Body) == "" {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}

	id, err := newPromptID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := promptFromFields(id, fields, now, now)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.insertPromptTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit create: %w", err)
	}
	return p, nil
}

// Update replaces the user-supplied fields of an existing prompt and
// re-derives its index entry atomically. Only the modified timestamp moves.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields Fields) (*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(fields.Body) == "" {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := s.getPromptTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := promptFromFields(id, fields, existing.Created, now)

	upd := tx.StmtContext(ctx, s.updatePromptStmt)
	defer upd.Close()

	tagsJSON, err := encodeTags(p.Tags)
	if err != nil {
		return nil, err
	}
	if _, err := upd.ExecContext(
		ctx,
		p.Title, p.Body, p.Purpose, tagsJSON, p.SessionRef, p.Notes,
		p.Modified.UnixMilli(), id,
	); err != nil {
		return nil, fmt.Errorf("store: update prompt: %w", err)
	}

	if err := s.rewritePostingsTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit update: %w", err)
	}
	return p, nil
}

// Duplicate copies an existing prompt verbatim under a fresh id with both
// timestamps reset to now.
func (s *SQLiteStore) Duplicate(ctx context.Context, id string) (*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin duplicate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	src, err := s.getPromptTx(ctx, tx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	newID, err := newPromptID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	dup := *src
	dup.ID = newID
	dup.Created = now
	dup.Modified = now

	if err := s.insertPromptTx(ctx, tx, &dup); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit duplicate: %w", err)
	}
	return &dup, nil
}

// Delete removes a prompt and its index entry atomically. Deleting an absent
// id, including a second delete of the same id, returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	delTokens := tx.StmtContext(ctx, s.deleteTokensStmt)
	defer delTokens.Close()
	if _, err := delTokens.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("store: delete tokens: %w", err)
	}

	delPrompt := tx.StmtContext(ctx, s.deletePromptStmt)
	defer delPrompt.Close()
	res, err := delPrompt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("store: delete prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete prompt rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit delete: %w", err)
	}
	return nil
}

// Get loads a prompt by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	p, err := scanPrompt(s.getPromptStmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get prompt: %w", err)
	}
	return p, nil
}

// List returns all prompts ordered by last-modified descending.
func (s *SQLiteStore) List(ctx context.Context) ([]*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	rows, err := s.listPromptsStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list prompts: %w", err)
	}
	defer rows.Close()
	return scanPromptRows(rows)
}

// Import merges external prompt records into the library. Records with an
// empty or colliding id get a fresh one; records with an empty body are
// skipped. Returns the number of prompts imported. The whole merge is one
// transaction.
func (s *SQLiteStore) Import(ctx context.Context, records []*Prompt) (int, error) {
	if s == nil {
		return 0, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return 0, errors.New("store: nil context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin import tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	imported := 0
	for _, rec := range records {
		if rec == nil || strings.TrimSpace(rec.Body) == "" {
			continue
		}

		p := *rec
		p.Tags = normalizeTags(p.Tags)

		id := strings.TrimSpace(p.ID)
		exists := false
		if id != "" {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM prompts WHERE id = ?`, id).Scan(&one)
			switch {
			case err == nil:
				exists = true
			case errors.Is(err, sql.ErrNoRows):
			default:
				return imported, fmt.Errorf("store: import id check: %w", err)
			}
		}
		if id == "" || exists {
			id, err = newPromptID()
			if err != nil {
				return imported, err
			}
		}
		p.ID = id

		now := time.Now().UTC().Truncate(time.Millisecond)
		if p.Created.IsZero() {
			p.Created = now
		}
		if p.Modified.IsZero() {
			p.Modified = now
		}

		if err := s.insertPromptTx(ctx, tx, &p); err != nil {
			return imported, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return imported, fmt.Errorf("store: commit import: %w", err)
	}
	return imported, nil
}

func (s *SQLiteStore) insertPromptTx(ctx context.Context, tx *sql.Tx, p *Prompt) error {
	tagsJSON, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}

	ins := tx.StmtContext(ctx, s.insertPromptStmt)
	defer ins.Close()
	if _, err := ins.ExecContext(
		ctx,
		p.ID, p.Title, p.Body, p.Purpose, tagsJSON, p.SessionRef, p.Notes,
		p.Created.UnixMilli(), p.Modified.UnixMilli(),
	); err != nil {
		return fmt.Errorf("store: insert prompt: %w", err)
	}
	return s.writePostingsTx(ctx, tx, p)
}

func (s *SQLiteStore) rewritePostingsTx(ctx context.Context, tx *sql.Tx, p *Prompt) error {
	del := tx.StmtContext(ctx, s.deleteTokensStmt)
	defer del.Close()
	if _, err := del.ExecContext(ctx, p.ID); err != nil {
		return fmt.Errorf("store: clear tokens: %w", err)
	}
	return s.writePostingsTx(ctx, tx, p)
}

func (s *SQLiteStore) writePostingsTx(ctx context.Context, tx *sql.Tx, p *Prompt) error {
	postings := index.Postings(searchableText(p))
	if len(postings) == 0 {
		return nil
	}

	ins := tx.StmtContext(ctx, s.insertTokenStmt)
	defer ins.Close()

	// Deterministic write order keeps transaction replay byte-stable.
	tokens := make([]string, 0, len(postings))
	for tok := range postings {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	for _, tok := range tokens {
		if _, err := ins.ExecContext(ctx, tok, p.ID, postings[tok]); err != nil {
			return fmt.Errorf("store: insert token %q: %w", tok, err)
		}
	}
	return nil
}

func (s *SQLiteStore) getPromptTx(ctx context.Context, tx *sql.Tx, id string) (*Prompt, error) {
	get := tx.StmtContext(ctx, s.getPromptStmt)
	defer get.Close()

	p, err := scanPrompt(get.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get prompt: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dst ...any) error
}

func scanPrompt(row rowScanner) (*Prompt, error) {
	var (
		p          Prompt
		tagsJSON   string
		createdMS  int64
		modifiedMS int64
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Body, &p.Purpose, &tagsJSON,
		&p.SessionRef, &p.Notes, &createdMS, &modifiedMS,
	); err != nil {
		return nil, err
	}

	tags, err := decodeTags(tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("store: decode tags: %w", err)
	}
	p.Tags = tags
	p.Created = time.UnixMilli(createdMS).UTC()
	p.Modified = time.UnixMilli(modifiedMS).UTC()
	return &p, nil
}

func scanPromptRows(rows *sql.Rows) ([]*Prompt, error) {
	var out []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan prompt: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan prompt rows: %w", err)
	}
	return out, nil
}

func promptFromFields(id string, fields Fields, created, modified time.Time) *Prompt {
	return &Prompt{
		ID:         id,
		Title:      strings.TrimSpace(fields.Title),
		Body:       fields.Body,
		Purpose:    strings.TrimSpace(fields.Purpose),
		Tags:       normalizeTags(fields.Tags),
		SessionRef: strings.TrimSpace(fields.SessionRef),
		Notes:      fields.Notes,
		Created:    created,
		Modified:   modified,
	}
}

// searchableText is the content the index entry derives from.
func searchableText(p *Prompt) string {
	parts := make([]string, 0, 3+len(p.Tags))
	parts = append(parts, p.Title, p.Body, p.Purpose)
	parts = append(parts, p.Tags...)
	return strings.Join(parts, " ")
}

// normalizeTags lowercases, trims, dedupes, and sorts tag values.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("store: marshal tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func newPromptID() (string, error) {
	var buf [6]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", fmt.Errorf("store: generate prompt id: %w", err)
	}
	return fmt.Sprintf("p_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
