package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"anydown/pkg/channel/telegram"
	"anydown/pkg/config"
	"anydown/pkg/extractor"
	"anydown/pkg/logger"
	"anydown/pkg/pipeline"
	"anydown/pkg/status"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram download bot",
	Long:  "Loads configuration, connects to Telegram, and serves download requests until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.bot")

		adapter, err := telegram.NewAdapter(cfg.Telegram, cfg.Delivery, appLogger)
		if err != nil {
			log.Error("Telegram configuration invalid", "error", err)
			return
		}

		client := extractor.NewClient(cfg.Extractor, appLogger)

		p, err := pipeline.New(client, adapter, appLogger)
		if err != nil {
			log.Error("Failed to initialize pipeline", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		statusServer := status.NewServer(cfg.Status.Host, cfg.Status.Port, appLogger)
		go func() {
			if err := statusServer.Run(runCtx); err != nil {
				log.Error("Status server failed", "error", err)
			}
		}()

		adapter.OnStarted(func() {
			statusServer.SetChannelState(true, nil)
		})

		log.Info("Bot started", "channel", adapter.Name())
		err = adapter.Run(runCtx, func(ctx context.Context, req pipeline.Request) {
			p.Run(ctx, req)
		})
		statusServer.SetChannelState(false, err)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Bot runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
