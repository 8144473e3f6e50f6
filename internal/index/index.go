// Package index derives searchable token postings from prompt text and
// ranks candidate prompts against a parsed query.
package index

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// stopwords excluded from postings and from query terms. Small fixed set;
// anything longer would start eating meaningful prompt vocabulary.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
}

// Tokenize case-folds text and splits on non-alphanumeric boundaries,
// dropping stopwords. Order is preserved; duplicates are kept.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Postings returns token frequencies for a prompt's searchable text.
func Postings(text string) map[string]int {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	out := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		out[tok]++
	}
	return out
}

// Query is a parsed search expression: bare terms are ANDed, phrases must
// appear literally (case-insensitive) in the prompt's searchable text.
type Query struct {
	Terms   []string
	Phrases []string
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool {
	return len(q.Terms) == 0 && len(q.Phrases) == 0
}

// ParseQuery splits a raw query into terms and quoted phrases. An unbalanced
// quote returns ok=false; callers are expected to degrade to literal
// substring matching rather than reject the input.
func ParseQuery(raw string) (Query, bool) {
	var q Query
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return q, true
	}

	rest := raw
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start+1:], '"')
		if end < 0 {
			return Query{}, false
		}
		phrase := strings.TrimSpace(rest[start+1 : start+1+end])
		if phrase != "" {
			q.Phrases = append(q.Phrases, strings.ToLower(phrase))
			q.Terms = append(q.Terms, Tokenize(phrase)...)
		}
		rest = rest[:start] + " " + rest[start+2+end:]
	}

	q.Terms = append(q.Terms, Tokenize(rest)...)
	q.Terms = dedupe(q.Terms)
	return q, true
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Candidate is one prompt under ranking: its per-term frequencies for the
// query terms and the recency tie-break key.
type Candidate struct {
	ID        string
	TermFreqs map[string]int
	Modified  time.Time
}

// Rank orders candidates by (1) distinct query terms matched descending,
// (2) total term frequency descending, (3) last-modified descending. The
// ordering is stable for identical inputs; id breaks exact ties so results
// are reproducible.
func Rank(candidates []Candidate, terms []string) []Candidate {
	type scored struct {
		c        Candidate
		distinct int
		total    int
	}

	rows := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		var distinct, total int
		for _, t := range terms {
			if n := c.TermFreqs[t]; n > 0 {
				distinct++
				total += n
			}
		}
		rows = append(rows, scored{c: c, distinct: distinct, total: total})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].distinct != rows[j].distinct {
			return rows[i].distinct > rows[j].distinct
		}
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		if !rows[i].c.Modified.Equal(rows[j].c.Modified) {
			return rows[i].c.Modified.After(rows[j].c.Modified)
		}
		return rows[i].c.ID < rows[j].c.ID
	})

	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.c)
	}
	return out
}
