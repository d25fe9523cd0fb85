package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lumaria/Bot-Extended/internal/app"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bot-extended",
		Short: "Quote streamer and best-price order console for the Extended exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to configuration file")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("❌ Startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	bootstrap := app.NewBootstrap()
	// Order signing is delegated to an external settlement component;
	// without one, orders go out unsigned.
	if err := bootstrap.Initialize(configPath, nil); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.RestoreWatchlist(ctx)

	// The console owns stdin; a shutdown signal wins over a pending read.
	replDone := make(chan error, 1)
	repl := app.NewREPL(bootstrap, os.Stdin, os.Stdout)
	go func() { replDone <- repl.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("👋 Shutting down gracefully...")
	case err := <-replDone:
		if err != nil {
			slog.Error("console failed", slog.Any("error", err))
		}
	}

	bootstrap.Shutdown()
	return nil
}
