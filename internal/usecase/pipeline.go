package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rssdigest/internal/domain"
	"rssdigest/internal/ports"
)

const (
	generationAttempts = 2
	digestTitlePrefix  = "# RSS 新闻摘要 - "
	failureNoticeHead  = "Failed to generate digest"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.EntrySource
	Summarizer ports.Summarizer
	Messenger  ports.Messenger
	Publisher  ports.Publisher
	History    ports.HistoryStore
	Tracker    ports.ProcessedTracker
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline implements the digest generation and delivery workflow. One run
// is a strict fetch → summarize → split → deliver → persist sequence; the
// design assumes at most one run active against the shared state files.
type Pipeline struct {
	source     ports.EntrySource
	summarizer ports.Summarizer
	messenger  ports.Messenger
	publisher  ports.Publisher
	history    ports.HistoryStore
	tracker    ports.ProcessedTracker
	logger     *slog.Logger
	now        func() time.Time
}

// RunOptions controls a single pipeline run.
type RunOptions struct {
	HoursBack int
	Deliver   bool
	Publish   bool
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		summarizer: deps.Summarizer,
		messenger:  deps.Messenger,
		publisher:  deps.Publisher,
		history:    deps.History,
		tracker:    deps.Tracker,
		logger:     logger,
		now:        now,
	}
}

// Run executes one digest cycle and returns the digest text. Generation
// failures and delivery failures come back as the error; the text is still
// meaningful in both cases (failure notice or undelivered digest).
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (string, error) {
	entries, err := p.fetchEntries(ctx, opts.HoursBack)
	if err != nil {
		return "", fmt.Errorf("fetch entries: %w", err)
	}

	if len(entries) == 0 {
		message := fmt.Sprintf("No new entries found in the past %d hours (after filtering processed IDs).", opts.HoursBack)
		p.logger.Warn("nothing to digest", "hours_back", opts.HoursBack)
		return message, nil
	}
	p.logger.Info("entries fetched", "count", len(entries), "hours_back", opts.HoursBack)

	digest, genErr := p.generateDigest(ctx, entries)
	if genErr != nil {
		notice := fmt.Sprintf("%s after %d attempts. Error: %v", failureNoticeHead, generationAttempts, genErr)
		p.logger.Error("digest generation failed, state left untouched", "error", genErr)
		if opts.Deliver && p.messenger != nil {
			if sendErr := p.messenger.Send(ctx, notice); sendErr != nil {
				p.logger.Error("failure notice not delivered", "error", sendErr)
			}
		}
		return notice, genErr
	}

	// The run's entries count as processed once a digest exists, delivered
	// or not; delivery only gates the digest history.
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	if err := p.tracker.Update(ids, digest.GeneratedAt); err != nil {
		p.logger.Error("processed ids not persisted", "error", err)
	}

	text := digest.Text()
	var deliverErr error
	if opts.Deliver {
		deliverErr = p.deliver(ctx, text)
		if deliverErr == nil {
			if err := p.history.Append(text); err != nil {
				p.logger.Error("digest history not persisted", "error", err)
			}
		} else {
			p.logger.Error("digest delivery failed, history not updated", "error", deliverErr)
		}
	}

	if opts.Publish {
		p.publish(ctx, digest)
	}

	return text, deliverErr
}

func (p *Pipeline) fetchEntries(ctx context.Context, hoursBack int) ([]domain.Entry, error) {
	exclude := map[int64]bool{}
	processed, err := p.tracker.Load()
	if err != nil {
		// An unreadable ledger degrades to "nothing processed yet".
		p.logger.Error("processed ids unreadable, continuing with empty set", "error", err)
	}
	for _, id := range processed {
		exclude[id] = true
	}

	return p.source.Recent(ctx, time.Duration(hoursBack)*time.Hour, exclude)
}

// generateDigest runs the two-stage summarization with a bounded retry.
// Any stage failure consumes one attempt; the loop does not distinguish
// which stage failed.
func (p *Pipeline) generateDigest(ctx context.Context, entries []domain.Entry) (domain.Digest, error) {
	history, err := p.history.Load()
	if err != nil {
		p.logger.Error("digest history unreadable, continuing without it", "error", err)
		history = nil
	}

	var lastErr error
	for attempt := 1; attempt <= generationAttempts; attempt++ {
		p.logger.Info("generating digest", "attempt", attempt, "max_attempts", generationAttempts)

		body, err := p.generateOnce(ctx, entries, history)
		if err == nil {
			generatedAt := p.now()
			return domain.Digest{
				Title:       digestTitlePrefix + generatedAt.Format("2006/01/02 15:04"),
				Body:        body,
				GeneratedAt: generatedAt,
			}, nil
		}

		lastErr = err
		p.logger.Error("digest attempt failed", "attempt", attempt, "error", err)
	}

	return domain.Digest{}, lastErr
}

func (p *Pipeline) generateOnce(ctx context.Context, entries []domain.Entry, history []string) (string, error) {
	merged, err := p.summarizer.SummarizeArticles(ctx, entries)
	if err != nil {
		return "", fmt.Errorf("stage 1: %w", err)
	}
	if strings.TrimSpace(merged) == "" {
		return "", fmt.Errorf("stage 1: produced no summaries")
	}

	body, err := p.summarizer.FinalizeDigest(ctx, merged, history)
	if err != nil {
		return "", fmt.Errorf("stage 2: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("stage 2: returned empty content")
	}

	return body, nil
}

// deliver sends the digest in category-split parts, in order. A part 1
// failure aborts before part 2; if splitting yields nothing, the unsplit
// digest goes out as a single message.
func (p *Pipeline) deliver(ctx context.Context, text string) error {
	part1, part2 := SplitDigest(text)

	if strings.TrimSpace(part1) == "" && strings.TrimSpace(part2) == "" {
		p.logger.Warn("split produced no parts, sending digest unsplit")
		return p.messenger.Send(ctx, text)
	}

	sent := 0
	if strings.TrimSpace(part1) != "" {
		p.logger.Info("sending part 1", "length", len(part1))
		if err := p.messenger.Send(ctx, part1); err != nil {
			return fmt.Errorf("send part 1: %w", err)
		}
		sent++
	}
	if strings.TrimSpace(part2) != "" {
		p.logger.Info("sending part 2", "length", len(part2))
		if err := p.messenger.Send(ctx, part2); err != nil {
			return fmt.Errorf("send part 2: %w", err)
		}
		sent++
	}

	p.logger.Info("digest delivered", "parts", sent)
	return nil
}

// publish republishes the digest as a standalone page. Failures are soft:
// the page is a convenience, never a reason to fail the run.
func (p *Pipeline) publish(ctx context.Context, digest domain.Digest) {
	if p.publisher == nil {
		return
	}

	title := strings.TrimSpace(strings.TrimPrefix(digest.Title, "# "))
	url, err := p.publisher.PublishDigest(ctx, title, digest.Body)
	if err != nil {
		p.logger.Error("digest page not published", "error", err)
		return
	}
	p.logger.Info("digest page published", "url", url)
}
