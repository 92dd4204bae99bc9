// Package memory gives the agent durable long-term memory: freeform notes
// under <workspace>/memory/*.md with a SQLite index for search, plus the
// always-loaded MEMORY.md digest.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	path       TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	mtime_ms   INTEGER NOT NULL,
	indexed_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_mtime ON notes(mtime_ms);
`

// Store indexes markdown notes in <dir> into a SQLite database for search.
// All failures degrade gracefully: a broken index never blocks the agent.
type Store struct {
	dir string // <workspace>/memory
	db  *sql.DB
}

// Open creates or opens the memory store rooted at dir. The index lives at
// dir/memory.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("memory dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "memory.db"))
	if err != nil {
		return nil, fmt.Errorf("memory index open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory index schema: %w", err)
	}
	return &Store{dir: dir, db: db}, nil
}

// Close releases the index database.
func (s *Store) Close() error { return s.db.Close() }

// Dir returns the memory root directory.
func (s *Store) Dir() string { return s.dir }

// Context returns the MEMORY.md digest for the system prompt, "" when the
// file does not exist.
func (s *Store) Context() string {
	data, err := os.ReadFile(filepath.Join(s.dir, "MEMORY.md"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Reindex walks memory/*.md and refreshes stale index rows. Deleted files
// are removed from the index.
func (s *Store) Reindex(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("memory reindex: %w", err)
	}

	seen := make(map[string]bool)
	nowMs := time.Now().UnixMilli()

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		seen[e.Name()] = true
		info, err := e.Info()
		if err != nil {
			continue
		}
		mtimeMs := info.ModTime().UnixMilli()

		var indexed int64
		err = s.db.QueryRowContext(ctx, `SELECT mtime_ms FROM notes WHERE path = ?`, e.Name()).Scan(&indexed)
		if err == nil && indexed == mtimeMs {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			slog.Warn("memory note unreadable, skipped", "file", e.Name(), "error", err)
			continue
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO notes (path, content, mtime_ms, indexed_ms) VALUES (?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET content = excluded.content, mtime_ms = excluded.mtime_ms, indexed_ms = excluded.indexed_ms`,
			e.Name(), string(data), mtimeMs, nowMs)
		if err != nil {
			return fmt.Errorf("memory index write: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM notes`)
	if err != nil {
		return fmt.Errorf("memory index read: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if rows.Scan(&p) == nil && !seen[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	for _, p := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE path = ?`, p); err != nil {
			return fmt.Errorf("memory index prune: %w", err)
		}
	}
	return nil
}

// Hit is one search match.
type Hit struct {
	Path    string
	Snippet string
	Score   int
}

// Search scans indexed notes for query terms (case-insensitive, all terms
// must match) and returns up to limit hits, best first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, content FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			continue
		}
		lower := strings.ToLower(content)
		score := 0
		matchedAll := true
		for _, term := range terms {
			n := strings.Count(lower, term)
			if n == 0 {
				matchedAll = false
				break
			}
			score += n
		}
		if !matchedAll {
			continue
		}
		hits = append(hits, Hit{Path: path, Snippet: snippetAround(content, lower, terms[0]), Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Store appends a note to a file under the memory dir and refreshes its
// index row.
func (s *Store) Store(ctx context.Context, file, content string) error {
	if file == "" {
		file = "notes.md"
	}
	if !strings.HasSuffix(file, ".md") {
		file += ".md"
	}
	if file != filepath.Base(file) {
		return fmt.Errorf("memory file must be a bare name: %s", file)
	}

	path := filepath.Join(s.dir, file)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("memory write: %w", err)
	}
	if _, err := f.WriteString(strings.TrimRight(content, "\n") + "\n\n"); err != nil {
		f.Close()
		return fmt.Errorf("memory write: %w", err)
	}
	f.Close()

	return s.Reindex(ctx)
}

// snippetAround extracts a window of text around the first occurrence of
// term (searched in lower, sliced from content).
func snippetAround(content, lower, term string) string {
	const window = 160
	idx := strings.Index(lower, term)
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
	}
	snippet := strings.TrimSpace(content[start:end])
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(content) {
		snippet += "…"
	}
	return snippet
}
