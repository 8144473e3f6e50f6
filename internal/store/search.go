package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/prompt-mini/internal/index"
)

// Search returns prompts ordered most relevant first. An empty query lists
// everything by last-modified descending. Terms are ANDed; quoted phrases
// must appear literally. Malformed syntax (an unbalanced quote) degrades to
// case-insensitive substring matching instead of failing, so the search bar
// never errors on partially typed input.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]*Prompt, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	raw := strings.TrimSpace(query)
	if raw == "" {
		return s.List(ctx)
	}

	q, ok := index.ParseQuery(raw)
	if !ok {
		return s.substringSearch(ctx, raw)
	}
	if len(q.Terms) == 0 {
		// A phrase of nothing but stopwords indexes no terms but is still a
		// valid literal query.
		if len(q.Phrases) > 0 {
			return s.phraseScan(ctx, q.Phrases)
		}
		return s.substringSearch(ctx, raw)
	}

	freqs, err := s.termFrequencies(ctx, q.Terms)
	if err != nil {
		return nil, err
	}

	// Boolean AND: every term must have a posting for the prompt.
	candidates := make([]index.Candidate, 0, len(freqs))
	for id, tf := range freqs {
		if len(tf) != len(q.Terms) {
			continue
		}
		candidates = append(candidates, index.Candidate{ID: id, TermFreqs: tf})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	prompts := make(map[string]*Prompt, len(candidates))
	kept := candidates[:0]
	for _, c := range candidates {
		p, err := s.Get(ctx, c.ID)
		if errors.Is(err, ErrNotFound) {
			// The row was deleted after its postings were read; the
			// post-state of that delete wins.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !matchesPhrases(p, q.Phrases) {
			continue
		}
		c.Modified = p.Modified
		prompts[c.ID] = p
		kept = append(kept, c)
	}

	ranked := index.Rank(kept, q.Terms)
	out := make([]*Prompt, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, prompts[c.ID])
	}
	return out, nil
}

// termFrequencies loads postings for the query terms grouped by prompt id.
func (s *SQLiteStore) termFrequencies(ctx context.Context, terms []string) (map[string]map[string]int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(terms)), ", ")
	args := make([]any, 0, len(terms))
	for _, t := range terms {
		args = append(args, t)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT prompt_id, token, freq FROM prompt_tokens WHERE token IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query postings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var (
			id    string
			token string
			freq  int
		)
		if err := rows.Scan(&id, &token, &freq); err != nil {
			return nil, fmt.Errorf("store: scan posting: %w", err)
		}
		tf := out[id]
		if tf == nil {
			tf = make(map[string]int, len(terms))
			out[id] = tf
		}
		tf[token] = freq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan postings: %w", err)
	}
	return out, nil
}

func matchesPhrases(p *Prompt, phrases []string) bool {
	if len(phrases) == 0 {
		return true
	}
	text := strings.ToLower(searchableText(p))
	for _, phrase := range phrases {
		if !strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// substringSearch is the degraded path for queries the parser cannot make
// sense of: a literal case-insensitive scan over the searchable text,
// keeping the last-modified ordering.
func (s *SQLiteStore) substringSearch(ctx context.Context, raw string) ([]*Prompt, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	// Quote characters are query syntax, not content.
	needle := strings.ToLower(strings.ReplaceAll(raw, `"`, ""))
	var out []*Prompt
	for _, p := range all {
		if strings.Contains(strings.ToLower(searchableText(p)), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// phraseScan handles queries that carry phrases but no indexable terms.
func (s *SQLiteStore) phraseScan(ctx context.Context, phrases []string) ([]*Prompt, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Prompt
	for _, p := range all {
		if matchesPhrases(p, phrases) {
			out = append(out, p)
		}
	}
	return out, nil
}
