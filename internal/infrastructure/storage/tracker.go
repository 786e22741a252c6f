package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"rssdigest/internal/ports"
)

// ProcessedWindow is how long an entry id stays in the tracker after the
// creation time encoded in the id itself.
const ProcessedWindow = 48 * time.Hour

// Tracker persists the processed-entry ledger as a flat JSON integer array.
// It is a sliding window keyed on the timestamp embedded in each id, not a
// generic TTL cache.
type Tracker struct {
	path   string
	window time.Duration
}

var _ ports.ProcessedTracker = (*Tracker)(nil)

// NewTracker wires the ledger to its backing file.
func NewTracker(path string) *Tracker {
	return &Tracker{path: path, window: ProcessedWindow}
}

// Load reads the persisted id set. A missing file is an empty set.
func (t *Tracker) Load() ([]int64, error) {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read processed ids %s: %w", t.path, err)
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("parse processed ids %s: %w", t.path, err)
	}
	return ids, nil
}

// Update unions the persisted set with ids, evicts everything whose encoded
// creation time is older than the window before now, and persists the rest.
// Re-adding ids already inside the window leaves the stored set unchanged.
func (t *Tracker) Update(ids []int64, now time.Time) error {
	existing, err := t.Load()
	if err != nil {
		// Degrade to an empty set rather than refusing to record this run.
		existing = nil
	}

	merged := make(map[int64]struct{}, len(existing)+len(ids))
	for _, id := range existing {
		merged[id] = struct{}{}
	}
	for _, id := range ids {
		merged[id] = struct{}{}
	}

	cutoff := now.Add(-t.window).Unix()
	kept := make([]int64, 0, len(merged))
	for id := range merged {
		if EntryTimestamp(id) >= cutoff {
			kept = append(kept, id)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })

	return writeJSON(t.path, kept)
}

// EntryTimestamp decodes the creation time embedded in a FreshRSS entry id:
// the first ten decimal digits are Unix seconds. Ids with fewer than ten
// digits decode to their full digit value, which predates any realistic
// cutoff and is therefore evicted.
func EntryTimestamp(id int64) int64 {
	digits := strconv.FormatInt(id, 10)
	if len(digits) > 10 {
		digits = digits[:10]
	}
	ts, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}
