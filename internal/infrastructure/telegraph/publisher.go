package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rssdigest/internal/ports"
)

const (
	apiBase  = "https://api.telegra.ph"
	pageBase = "https://telegra.ph"
)

// Publisher creates Telegraph pages from digest markdown, preserving
// hyperlinks that the chat delivery path cannot carry at full length.
type Publisher struct {
	accessToken string
	authorName  string
	apiURL      string
	formatter   *Formatter
	client      *http.Client
	logger      *slog.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher wires the Telegraph account used for page creation.
func NewPublisher(accessToken, authorName string, logger *slog.Logger) *Publisher {
	return &Publisher{
		accessToken: accessToken,
		authorName:  authorName,
		apiURL:      apiBase,
		formatter:   NewFormatter(logger),
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// PublishDigest converts the digest body to Telegraph HTML, creates the
// page, and returns its public URL.
func (p *Publisher) PublishDigest(ctx context.Context, title, markdown string) (string, error) {
	if p.accessToken == "" {
		return "", fmt.Errorf("telegraph publisher misconfigured: no access token")
	}

	htmlContent := p.formatter.ToHTML(markdown)

	form := url.Values{}
	form.Set("access_token", p.accessToken)
	form.Set("title", title)
	form.Set("author_name", p.authorName)
	form.Set("content", htmlContent)
	form.Set("return_content", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/createPage", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telegraph error: %s", resp.Status)
	}

	var result struct {
		OK     bool   `json:"ok"`
		Error  string `json:"error"`
		Result struct {
			Path string `json:"path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode telegraph response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("telegraph error: %s", result.Error)
	}
	if result.Result.Path == "" {
		return "", fmt.Errorf("telegraph response missing page path")
	}

	pageURL := pageBase + "/" + result.Result.Path
	if p.logger != nil {
		p.logger.Info("page created", "url", pageURL)
	}
	return pageURL, nil
}
