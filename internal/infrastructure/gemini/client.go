package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rssdigest/internal/config"
	"rssdigest/internal/domain"
	"rssdigest/internal/ports"
)

// Typed failure classification for the summarizer boundary. Legacy models
// occasionally emit a failure marker inside otherwise ordinary text; that
// check lives here and nowhere else.
var (
	ErrEmptyCompletion = errors.New("model returned empty completion")
	ErrFailureMarker   = errors.New("model output contains a failure marker")
)

var failureMarkers = []string{
	"Failed to generate digest",
	"无法生成摘要",
}

const defaultStageOneWorkers = 20

const stage1SystemPrompt = `You are a news editor. Summarize the given article in 2-3 concise Chinese sentences.
Keep concrete facts (who, what, numbers); drop fluff. Output only the summary.`

const stage2SystemPrompt = `You are the editor of a Chinese tech news digest. From the per-article summaries,
write one markdown digest grouped under these section headers, in this order,
omitting any section with nothing to say:

## AI
## Semi
## Smartphone
## Other Tech
## World News
## Misc

Each section lists items as "- **headline** summary [原文](link)" bullets.
Do not repeat stories already covered by the previous digests provided.
Output only the digest body, no top-level title.`

// Client implements the two-stage summarizer over an OpenAI-compatible
// chat-completions API (Gemini's compatibility endpoint by default).
type Client struct {
	baseURL     string
	apiKey      string
	stage1Model string
	stage2Model string
	workers     int
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.Summarizer = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.AIConfig, workers int, logger *slog.Logger) *Client {
	if workers <= 0 {
		workers = defaultStageOneWorkers
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		stage1Model: cfg.Stage1Model,
		stage2Model: cfg.Stage2Model,
		workers:     workers,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

// SummarizeArticles runs stage 1: one summary per entry, produced by a
// bounded worker pool, merged back in entry order. A single failed article
// is logged and skipped; the merge fails only when nothing survived.
func (c *Client) SummarizeArticles(ctx context.Context, entries []domain.Entry) (string, error) {
	summaries := make([]string, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, entry := range entries {
		g.Go(func() error {
			prompt := fmt.Sprintf("Title: %s\nLink: %s\n\n%s", entry.Title, entry.Link, entry.Content)
			summary, err := c.complete(gctx, c.stage1Model, stage1SystemPrompt, prompt)
			if err != nil {
				c.log().Warn("stage 1 article skipped", "entry_id", entry.ID, "error", err)
				return nil
			}
			summaries[i] = fmt.Sprintf("- **%s** %s\n  %s", entry.Title, summary, entry.Link)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("summarize articles: %w", err)
	}

	kept := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("summarize articles: %w", ErrEmptyCompletion)
	}

	c.log().Info("stage 1 complete", "articles", len(entries), "summarized", len(kept))
	return strings.Join(kept, "\n\n"), nil
}

// FinalizeDigest runs stage 2: the aggregate digest body from the merged
// stage-1 summaries, steered away from stories in the recent history.
func (c *Client) FinalizeDigest(ctx context.Context, merged string, history []string) (string, error) {
	var prompt strings.Builder
	if len(history) > 0 {
		prompt.WriteString("Previous digests (do not repeat their stories):\n\n")
		for _, past := range history {
			prompt.WriteString(past)
			prompt.WriteString("\n\n---\n\n")
		}
	}
	prompt.WriteString("Article summaries:\n\n")
	prompt.WriteString(merged)

	body, err := c.complete(ctx, c.stage2Model, stage2SystemPrompt, prompt.String())
	if err != nil {
		return "", fmt.Errorf("finalize digest: %w", err)
	}
	return body, nil
}

// complete posts one chat completion and classifies the result.
func (c *Client) complete(ctx context.Context, model, system, user string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return classify(parsed.Choices[0].Message.Content)
}

// classify converts blank output and legacy failure markers into typed
// errors so callers never match substrings against generated text.
func classify(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyCompletion
	}
	for _, marker := range failureMarkers {
		if strings.Contains(trimmed, marker) {
			return "", fmt.Errorf("%w: %q", ErrFailureMarker, marker)
		}
	}
	return trimmed, nil
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
