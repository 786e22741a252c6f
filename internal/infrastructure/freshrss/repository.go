package freshrss

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PuerkitoBio/goquery"
	_ "modernc.org/sqlite"

	"rssdigest/internal/domain"
	"rssdigest/internal/ports"
)

var userExpr = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Repository reads candidate entries from a FreshRSS SQLite database.
// FreshRSS keeps per-account tables named "<user>_entry"; the repository is
// strictly read-only against them.
type Repository struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

var _ ports.EntrySource = (*Repository)(nil)

// Open connects to the FreshRSS database for the given account.
func Open(path, user string, logger *slog.Logger) (*Repository, error) {
	if !userExpr.MatchString(user) {
		return nil, fmt.Errorf("invalid freshrss user %q", user)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open freshrss db: %w", err)
	}

	return &Repository{
		db:     db,
		table:  fmt.Sprintf("`%s_entry`", user),
		logger: logger,
	}, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Recent returns entries published inside the lookback window, oldest first,
// excluding ids already folded into a past digest. The stored HTML content
// is reduced to plain text before it reaches the summarizer.
func (r *Repository) Recent(ctx context.Context, window time.Duration, exclude map[int64]bool) ([]domain.Entry, error) {
	cutoff := time.Now().Add(-window).Unix()

	builder := sq.Select("id", "title", "content", "link", "date").
		From(r.table).
		Where(sq.GtOrEq{"date": cutoff}).
		OrderBy("date ASC")

	if len(exclude) > 0 {
		ids := make([]int64, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		builder = builder.Where(sq.NotEq{"id": ids})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entry query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			entry   domain.Entry
			content sql.NullString
			link    sql.NullString
			date    int64
		)
		if err := rows.Scan(&entry.ID, &entry.Title, &content, &link, &date); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		// Belt and braces: the NOT IN clause already excludes these.
		if exclude[entry.ID] {
			continue
		}

		entry.Content = extractText(content.String)
		entry.Link = link.String
		entry.PublishedAt = time.Unix(date, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	if r.logger != nil {
		r.logger.Debug("entries loaded", "count", len(entries), "excluded", len(exclude))
	}
	return entries, nil
}

// extractText strips markup from FreshRSS-stored HTML content. Unparseable
// content falls back to the raw string so the summarizer still sees it.
func extractText(htmlContent string) string {
	trimmed := strings.TrimSpace(htmlContent)
	if trimmed == "" || !strings.Contains(trimmed, "<") {
		return trimmed
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}
	doc.Find("script, style").Remove()

	text := doc.Text()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}
