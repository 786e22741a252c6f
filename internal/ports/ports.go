package ports

import (
	"context"
	"time"

	"rssdigest/internal/domain"
)

// EntrySource pulls candidate entries from the ingestion database.
// Ids present in exclude must never appear in the result.
type EntrySource interface {
	Recent(ctx context.Context, window time.Duration, exclude map[int64]bool) ([]domain.Entry, error)
}

// Summarizer runs the two-stage digest generation. Stage 1 produces merged
// per-article summaries; stage 2 folds them into the final digest body,
// consulting recent digest history to avoid repeating covered stories.
// Both signal failure with an error value, never with text in the output.
type Summarizer interface {
	SummarizeArticles(ctx context.Context, entries []domain.Entry) (string, error)
	FinalizeDigest(ctx context.Context, merged string, history []string) (string, error)
}

// Messenger delivers one message to the configured chat.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// Publisher republishes a digest as a standalone article page and returns
// its public URL.
type Publisher interface {
	PublishDigest(ctx context.Context, title, markdown string) (string, error)
}

// HistoryStore keeps the bounded, most-recent-first log of past digests.
type HistoryStore interface {
	Load() ([]string, error)
	Append(digest string) error
}

// ProcessedTracker is the sliding-window idempotency ledger of entry ids
// already folded into a delivered digest.
type ProcessedTracker interface {
	Load() ([]int64, error)
	Update(ids []int64, now time.Time) error
}
