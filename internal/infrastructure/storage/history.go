package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rssdigest/internal/ports"
)

// HistoryLimit caps how many past digests are kept for deduplication.
const HistoryLimit = 10

// HistoryStore persists the bounded digest history as a flat JSON string
// array, most-recent first. The file is meant to stay human-diffable.
type HistoryStore struct {
	path  string
	limit int
}

var _ ports.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore wires the store to its backing file.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path, limit: HistoryLimit}
}

// Load reads the stored digests, most-recent first. A missing file is an
// empty history, not an error.
func (s *HistoryStore) Load() ([]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}

	var history []string
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", s.path, err)
	}
	return history, nil
}

// Append inserts the digest at the front and evicts the oldest entries
// beyond the limit.
func (s *HistoryStore) Append(digest string) error {
	history, err := s.Load()
	if err != nil {
		// An unreadable file degrades to an empty history so a new digest
		// can still be recorded.
		history = nil
	}

	history = append([]string{digest}, history...)
	if len(history) > s.limit {
		history = history[:s.limit]
	}

	return writeJSON(s.path, history)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
