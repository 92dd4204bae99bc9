package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Store(ctx, "people", "Alice prefers metric units and short answers."); err != nil {
		t.Fatal(err)
	}
	if err := s.Store(ctx, "projects", "The rewrite of the billing system ships in March."); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "billing", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Path != "projects.md" {
		t.Fatalf("hits = %+v, want one hit in projects.md", hits)
	}
	if hits[0].Snippet == "" {
		t.Error("empty snippet")
	}
}

func TestSearchRequiresAllTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Store(ctx, "a", "alpha beta")
	s.Store(ctx, "b", "alpha gamma")

	hits, err := s.Search(ctx, "alpha beta", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Path != "a.md" {
		t.Errorf("hits = %+v, want only a.md", hits)
	}
}

func TestReindexDropsDeletedNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Store(ctx, "temp", "ephemeral fact")

	if err := os.Remove(filepath.Join(s.Dir(), "temp.md")); err != nil {
		t.Fatal(err)
	}
	if err := s.Reindex(ctx); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "ephemeral", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted note still indexed: %+v", hits)
	}
}

func TestContextReadsDigest(t *testing.T) {
	s := newTestStore(t)
	if got := s.Context(); got != "" {
		t.Errorf("Context with no MEMORY.md = %q, want empty", got)
	}
	os.WriteFile(filepath.Join(s.Dir(), "MEMORY.md"), []byte("## Digest\nkey fact\n"), 0644)
	if got := s.Context(); got != "## Digest\nkey fact" {
		t.Errorf("Context = %q", got)
	}
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	s := newTestStore(t)
	if err := s.Store(context.Background(), "../escape", "x"); err == nil {
		t.Error("path traversal in memory file name accepted")
	}
}
