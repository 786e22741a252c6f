package app

import (
	"context"
	"fmt"
	"log/slog"

	"rssdigest/internal/config"
	"rssdigest/internal/infrastructure/freshrss"
	"rssdigest/internal/infrastructure/gemini"
	"rssdigest/internal/infrastructure/storage"
	"rssdigest/internal/infrastructure/telegram"
	"rssdigest/internal/infrastructure/telegraph"
	"rssdigest/internal/logging"
	"rssdigest/internal/ports"
	"rssdigest/internal/usecase"
)

// Application wires config to adapters and the digest pipeline.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	source   *freshrss.Repository
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	source, err := freshrss.Open(cfg.Database.Path, cfg.Database.User, baseLogger.With("component", "freshrss"))
	if err != nil {
		return nil, fmt.Errorf("open entry source: %w", err)
	}

	summarizer := gemini.NewClient(cfg.AI, cfg.Digest.StageOneWorkers, baseLogger.With("component", "gemini"))
	messenger := telegram.NewSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, baseLogger.With("component", "telegram"))

	var publisher ports.Publisher
	if cfg.Telegraph.AccessToken != "" {
		publisher = telegraph.NewPublisher(cfg.Telegraph.AccessToken, cfg.Telegraph.AuthorName, baseLogger.With("component", "telegraph"))
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Summarizer: summarizer,
		Messenger:  messenger,
		Publisher:  publisher,
		History:    storage.NewHistoryStore(cfg.State.DigestHistoryFile),
		Tracker:    storage.NewTracker(cfg.State.ProcessedIDsFile),
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline, source: source}, nil
}

// Run executes one digest cycle and returns the digest text.
func (a *Application) Run(ctx context.Context, opts usecase.RunOptions) (string, error) {
	if opts.HoursBack <= 0 {
		opts.HoursBack = a.cfg.Digest.HoursBack
	}
	return a.pipeline.Run(ctx, opts)
}

// Close releases held resources.
func (a *Application) Close() error {
	return a.source.Close()
}
