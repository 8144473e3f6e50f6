package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "prompts.db")
	st, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func mustCreate(t *testing.T, st *SQLiteStore, fields Fields) *Prompt {
	t.Helper()

	p, err := st.Create(context.Background(), fields)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{
		Title:      "Summarizer",
		Body:       "Summarize the following text in three bullet points.",
		Purpose:    "writing",
		Tags:       []string{"Summary", "writing", "summary"},
		SessionRef: "sess-42",
		Notes:      "works best on short inputs",
	})

	if p.ID == "" {
		t.Fatalf("Create: empty id")
	}
	if !p.Created.Equal(p.Modified) {
		t.Fatalf("Create: created %v != modified %v", p.Created, p.Modified)
	}

	got, err := st.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Summarizer" || got.Body != p.Body {
		t.Fatalf("Get: got %q/%q", got.Title, got.Body)
	}
	if got.Purpose != "writing" || got.SessionRef != "sess-42" || got.Notes != "works best on short inputs" {
		t.Fatalf("Get: metadata mismatch: %+v", got)
	}
	// Tags come back normalized: lowercased, deduplicated, sorted.
	if len(got.Tags) != 2 || got.Tags[0] != "summary" || got.Tags[1] != "writing" {
		t.Fatalf("Get: tags %v", got.Tags)
	}
	if !got.Created.Equal(p.Created) || !got.Modified.Equal(p.Modified) {
		t.Fatalf("Get: timestamps drifted: %v/%v want %v/%v", got.Created, got.Modified, p.Created, p.Modified)
	}
}

func TestSQLiteStore_CreateRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Create(context.Background(), Fields{Title: "no body", Body: "   "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create: got %v, want ValidationError", err)
	}
	if verr.Field != "body" {
		t.Fatalf("Create: validation field %q", verr.Field)
	}
}

func TestSQLiteStore_UniqueIDs(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		p := mustCreate(t, st, Fields{Body: "body"})
		if seen[p.ID] {
			t.Fatalf("duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestSQLiteStore_Update(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{Title: "draft", Body: "old body", Tags: []string{"a"}})

	time.Sleep(5 * time.Millisecond)

	upd, err := st.Update(ctx, p.ID, Fields{Title: "final", Body: "new body"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Title != "final" || upd.Body != "new body" {
		t.Fatalf("Update: got %q/%q", upd.Title, upd.Body)
	}
	if !upd.Created.Equal(p.Created) {
		t.Fatalf("Update: created changed %v -> %v", p.Created, upd.Created)
	}
	if !upd.Modified.After(p.Modified) {
		t.Fatalf("Update: modified not advanced: %v vs %v", upd.Modified, p.Modified)
	}
	// Fields absent from the update are cleared, not merged.
	if len(upd.Tags) != 0 {
		t.Fatalf("Update: stale tags %v", upd.Tags)
	}

	// The index follows the new content in the same transaction.
	hits, err := st.Search(ctx, "old")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("Search old: got %d hits", len(hits))
	}
	hits, err = st.Search(ctx, "new")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != p.ID {
		t.Fatalf("Search new: %v", hits)
	}
}

func TestSQLiteStore_UpdateMissing(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := st.Update(context.Background(), "p_missing", Fields{Body: "body"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Duplicate(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{Title: "orig", Body: "copy me", Tags: []string{"x"}})

	time.Sleep(5 * time.Millisecond)

	dup, err := st.Duplicate(ctx, p.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID == p.ID {
		t.Fatalf("Duplicate: id reused")
	}
	if dup.Title != p.Title || dup.Body != p.Body || len(dup.Tags) != 1 {
		t.Fatalf("Duplicate: content mismatch: %+v", dup)
	}
	if !dup.Created.After(p.Created) || !dup.Created.Equal(dup.Modified) {
		t.Fatalf("Duplicate: timestamps %v/%v", dup.Created, dup.Modified)
	}

	// Both copies are searchable.
	hits, err := st.Search(ctx, "copy")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search: got %d hits, want 2", len(hits))
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{Body: "ephemeral content"})

	if err := st.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if err := st.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: got %v, want ErrNotFound", err)
	}

	hits, err := st.Search(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("Search after delete: %d hits", len(hits))
	}
}

func TestSQLiteStore_ListOrder(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	first := mustCreate(t, st, Fields{Body: "one"})
	time.Sleep(5 * time.Millisecond)
	second := mustCreate(t, st, Fields{Body: "two"})

	prompts, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("List: got %d", len(prompts))
	}
	if prompts[0].ID != second.ID || prompts[1].ID != first.ID {
		t.Fatalf("List: order %s, %s", prompts[0].ID, prompts[1].ID)
	}
}

func TestSQLiteStore_SearchTermsAndRanking(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	one := mustCreate(t, st, Fields{Title: "alpha", Body: "alpha alpha beta"})
	time.Sleep(5 * time.Millisecond)
	two := mustCreate(t, st, Fields{Title: "other", Body: "alpha only here"})
	mustCreate(t, st, Fields{Title: "noise", Body: "gamma delta"})

	// Multiple terms AND together.
	hits, err := st.Search(ctx, "alpha beta")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != one.ID {
		t.Fatalf("Search alpha beta: %v", hits)
	}

	// Higher total frequency outranks a fresher match.
	hits, err = st.Search(ctx, "alpha")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search alpha: got %d hits", len(hits))
	}
	if hits[0].ID != one.ID || hits[1].ID != two.ID {
		t.Fatalf("Search alpha: order %s, %s", hits[0].ID, hits[1].ID)
	}
}

func TestSQLiteStore_SearchPhrase(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	want := mustCreate(t, st, Fields{Body: "please refine this prompt carefully"})
	mustCreate(t, st, Fields{Body: "prompt refine please, in another order"})

	hits, err := st.Search(ctx, `"refine this prompt"`)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != want.ID {
		t.Fatalf("Search phrase: %v", hits)
	}
}

func TestSQLiteStore_SearchDegradesOnUnbalancedQuote(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{Body: `an "unbalanced quote lives here`})

	// A lone quote is not an error; the query degrades to a substring scan.
	hits, err := st.Search(ctx, `"unbalanced`)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != p.ID {
		t.Fatalf("Search degraded: %v", hits)
	}
}

func TestSQLiteStore_SearchStopwordPhrase(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	want := mustCreate(t, st, Fields{Body: "to be or not to be, that is the question"})
	mustCreate(t, st, Fields{Body: "be to, reversed"})

	// Every word of the phrase is a stopword; the phrase still matches
	// literally.
	hits, err := st.Search(ctx, `"to be"`)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != want.ID {
		t.Fatalf("Search stopword phrase: %v", hits)
	}
}

func TestSQLiteStore_SearchDuringConcurrentDelete(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		p := mustCreate(t, st, Fields{Body: "alpha payload"})
		ids = append(ids, p.ID)
	}

	errc := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		defer close(errc)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := st.Search(ctx, "alpha"); err != nil {
				errc <- err
				return
			}
		}
	}()

	// Deletes land between the postings read and the row fetches; a search
	// must see each prompt as either present or gone, never as an error.
	for _, id := range ids {
		if err := st.Delete(ctx, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	close(stop)

	if err := <-errc; err != nil {
		t.Fatalf("Search during delete: %v", err)
	}
}

func TestSQLiteStore_SearchEmptyQueryListsAll(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, st, Fields{Body: "one"})
	mustCreate(t, st, Fields{Body: "two"})

	hits, err := st.Search(ctx, "   ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search empty: got %d hits", len(hits))
	}
}

func TestSQLiteStore_SearchMatchesTagsAndTitle(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	p := mustCreate(t, st, Fields{Title: "Codegen helper", Body: "write tests", Tags: []string{"golang"}})

	for _, q := range []string{"codegen", "golang"} {
		hits, err := st.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search %q: %v", q, err)
		}
		if len(hits) != 1 || hits[0].ID != p.ID {
			t.Fatalf("Search %q: %v", q, hits)
		}
	}
}

func TestSQLiteStore_Import(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	existing := mustCreate(t, st, Fields{Body: "already here"})

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*Prompt{
		{ID: existing.ID, Title: "collides", Body: "colliding import", Created: created, Modified: created},
		{Title: "no id", Body: "imported without id"},
		{Title: "empty", Body: "   "},
	}

	n, err := st.Import(ctx, records)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("Import: got %d, want 2", n)
	}

	prompts, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("List: got %d prompts", len(prompts))
	}

	// The colliding record got a fresh id; the original is untouched.
	kept, err := st.Get(ctx, existing.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if kept.Body != "already here" {
		t.Fatalf("Import overwrote existing prompt: %q", kept.Body)
	}

	hits, err := st.Search(ctx, "colliding")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID == existing.ID {
		t.Fatalf("Search colliding: %v", hits)
	}
}

func TestSQLiteStore_BackupRestore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewSQLiteStore(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()

	p, err := st.Create(ctx, Fields{Body: "survives backup"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	backupPath := filepath.Join(dir, "backup.db")
	if err := st.Backup(backupPath); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// Drift the live store, then roll back.
	if err := st.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Create(ctx, Fields{Body: "post-backup noise"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := st.Restore(backupPath); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := st.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if got.Body != "survives backup" {
		t.Fatalf("Get after restore: %q", got.Body)
	}
	prompts, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("List after restore: %d prompts", len(prompts))
	}

	// The restored database answers index queries too.
	hits, err := st.Search(ctx, "survives")
	if err != nil {
		t.Fatalf("Search after restore: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search after restore: %d hits", len(hits))
	}
}
