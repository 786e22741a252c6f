package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rssdigest/internal/app"
	"rssdigest/internal/config"
	"rssdigest/internal/logging"
	"rssdigest/internal/usecase"
)

var (
	runHoursBack int
	runNoSend    bool
	runPublish   bool
)

var rootCmd = &cobra.Command{
	Use:          "rssdigest",
	Short:        "Generate and deliver an AI digest of recent FreshRSS entries",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest cycle",
	Long: `Fetches entries ingested since the lookback window, summarizes them in two
stages, sends the digest to Telegram split by category, and optionally
republishes it as a Telegraph page.`,
	RunE: runDigest,
}

func init() {
	runCmd.Flags().IntVar(&runHoursBack, "hours-back", 0, "lookback window in hours (default from config)")
	runCmd.Flags().BoolVar(&runNoSend, "no-send", false, "generate the digest without delivering it")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "republish the digest as a Telegraph page")
	rootCmd.AddCommand(runCmd)
}

func runDigest(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	text, err := application.Run(context.Background(), usecase.RunOptions{
		HoursBack: runHoursBack,
		Deliver:   !runNoSend,
		Publish:   runPublish,
	})
	if text != "" {
		cmd.Println(text)
	}
	if err != nil {
		return fmt.Errorf("digest run: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
