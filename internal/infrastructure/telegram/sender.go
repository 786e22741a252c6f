package telegram

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

const apiBase = "https://api.telegram.org"

// Sender delivers digest messages to a Telegram chat via the bot API.
type Sender struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.Messenger = (*Sender)(nil)

// NewSender registers the bot token and chat identifier.
func NewSender(botToken, chatID string, logger *slog.Logger) *Sender {
	return &Sender{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  apiBase,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Send posts one Markdown message. The bot API reports failures both as
// HTTP status codes and as ok=false payloads; both become errors here.
func (s *Sender) Send(ctx context.Context, text string) error {
	if s.botToken == "" || s.chatID == "" {
		return fmt.Errorf("telegram sender misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram error: %s", resp.Status)
		}
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !result.OK {
		if result.Description == "" {
			result.Description = resp.Status
		}
		return fmt.Errorf("telegram error: %s", result.Description)
	}

	if s.logger != nil {
		s.logger.Debug("message sent", "length", len(text))
	}
	return nil
}
