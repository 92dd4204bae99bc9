// Package sessions persists conversation state: one JSON file per session
// key under <workspace>/sessions/, with a hot in-memory cache in front.
//
// Session keys follow the canonical format {channel}:{chatId}
// (cli:default, web:<sid>, system:<jobId>). The colon is part of the key;
// filenames substitute "_" as a stable, portable escape.
package sessions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/tinyclaw/internal/providers"
)

// Session stores conversation history and summary for one key.
type Session struct {
	Key         string              `json:"key"`
	History     []providers.Message `json:"history"`
	Summary     string              `json:"summary,omitempty"`
	CreatedAtMs int64               `json:"createdAtMs"`
	UpdatedAtMs int64               `json:"updatedAtMs"`

	InputTokens  int64  `json:"inputTokens,omitempty"`
	OutputTokens int64  `json:"outputTokens,omitempty"`
	Channel      string `json:"channel,omitempty"`
	Model        string `json:"model,omitempty"`
	SpawnedBy    string `json:"spawnedBy,omitempty"`
	SpawnDepth   int    `json:"spawnDepth,omitempty"`
}

// Manager handles session lifecycle, persistence, and lookup.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	storage  string
}

// NewManager creates a manager persisting sessions under storage.
// Empty storage keeps sessions in memory only.
func NewManager(storage string) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		storage:  storage,
	}
	if storage != "" {
		os.MkdirAll(storage, 0755)
	}
	return m
}

// GetOrCreate returns the session for key, loading it from disk on first
// access or creating a fresh one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(key)
}

func (m *Manager) getOrCreateLocked(key string) *Session {
	if s, ok := m.sessions[key]; ok {
		return s
	}
	if s := m.loadFromDisk(key); s != nil {
		m.sessions[key] = s
		return s
	}
	now := time.Now().UnixMilli()
	s := &Session{
		Key:         key,
		History:     []providers.Message{},
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	m.sessions[key] = s
	return s
}

// loadFromDisk reads and repairs a persisted session. Orphan role=tool
// messages (answers whose assistant tool_calls were lost) are discarded so
// the tool-group invariant holds after reload.
func (m *Manager) loadFromDisk(key string) *Session {
	if m.storage == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(m.storage, sanitizeFilename(key)+".json"))
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("session load failed, starting fresh", "key", key, "error", err)
		return nil
	}
	s.Key = key
	s.History = SanitizeHistory(s.History)
	if s.History == nil {
		s.History = []providers.Message{}
	}
	return &s
}

// Append appends a message and persists write-through. On disk failure the
// in-memory copy is still updated and the error returned (SessionIOError
// semantics: the conversation continues).
func (m *Manager) Append(key string, msg providers.Message) error {
	m.mu.Lock()
	s := m.getOrCreateLocked(key)
	s.History = append(s.History, msg)
	s.UpdatedAtMs = time.Now().UnixMilli()
	m.mu.Unlock()

	return m.Save(key)
}

// History returns a copy of the message history.
func (m *Manager) History(key string) []providers.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	msgs := make([]providers.Message, len(s.History))
	copy(msgs, s.History)
	return msgs
}

// Summary returns the session summary.
func (m *Manager) Summary(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.Summary
	}
	return ""
}

// ReplaceHistory swaps in a summarized history. Only the first snapshotLen
// messages are replaced by tail; messages appended after the snapshot was
// taken are preserved verbatim. Used exclusively by the summarizer.
func (m *Manager) ReplaceHistory(key, summary string, snapshotLen int, tail []providers.Message) error {
	m.mu.Lock()
	s := m.getOrCreateLocked(key)
	var preserved []providers.Message
	if snapshotLen < len(s.History) {
		preserved = s.History[snapshotLen:]
	}
	newHistory := make([]providers.Message, 0, len(tail)+len(preserved))
	newHistory = append(newHistory, tail...)
	newHistory = append(newHistory, preserved...)
	s.History = newHistory
	s.Summary = summary
	s.UpdatedAtMs = time.Now().UnixMilli()
	m.mu.Unlock()

	return m.Save(key)
}

// AccumulateTokens adds token counts from a completed run.
func (m *Manager) AccumulateTokens(key string, input, output int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.InputTokens += input
		s.OutputTokens += output
	}
}

// SetMetadata records channel/model metadata on the session.
func (m *Manager) SetMetadata(key, channel, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		if channel != "" {
			s.Channel = channel
		}
		if model != "" {
			s.Model = model
		}
	}
}

// SetSpawnInfo records subagent origin metadata.
func (m *Manager) SetSpawnInfo(key, spawnedBy string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.SpawnedBy = spawnedBy
		s.SpawnDepth = depth
	}
}

// Reset clears a session's history and summary.
func (m *Manager) Reset(key string) error {
	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		s.History = []providers.Message{}
		s.Summary = ""
		s.UpdatedAtMs = time.Now().UnixMilli()
	}
	m.mu.Unlock()
	return m.Save(key)
}

// Delete removes a session entirely.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	if m.storage != "" {
		path := filepath.Join(m.storage, sanitizeFilename(key)+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// List returns the keys of all cached sessions, most recently updated last.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.sessions[keys[i]], m.sessions[keys[j]]
		if a.UpdatedAtMs != b.UpdatedAtMs {
			return a.UpdatedAtMs < b.UpdatedAtMs
		}
		return keys[i] < keys[j]
	})
	return keys
}

// LastUsedChannel finds the most recently updated non-system session and
// returns its channel and chatID. Used for heartbeat delivery targeting.
func (m *Manager) LastUsedChannel() (channel, chatID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Session
	for key, s := range m.sessions {
		if strings.HasPrefix(key, "system:") || strings.HasPrefix(key, "spawn:") || strings.HasPrefix(key, "heartbeat:") {
			continue
		}
		if best == nil || s.UpdatedAtMs > best.UpdatedAtMs {
			best = s
		}
	}
	if best == nil {
		return "", ""
	}
	parts := strings.SplitN(best.Key, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Save persists a session to disk atomically (write-to-temp + rename).
func (m *Manager) Save(key string) error {
	if m.storage == "" {
		return nil
	}

	m.mu.RLock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	snapshot := *s
	snapshot.History = make([]providers.Message, len(s.History))
	copy(snapshot.History, s.History)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}

	filename := sanitizeFilename(key)
	if filename == "." || !filepath.IsLocal(filename) || strings.ContainsAny(filename, `/\`) {
		return os.ErrInvalid
	}
	sessionPath := filepath.Join(m.storage, filename+".json")

	tmpFile, err := os.CreateTemp(m.storage, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("session write: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("session write: %w", err)
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, sessionPath); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	cleanup = false
	return nil
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
