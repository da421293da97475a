package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskmill/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch sources and process tasks until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// A second signal while shutting down exits immediately.
		go func() {
			<-ctx.Done()
			stop()
			force := make(chan os.Signal, 1)
			signal.Notify(force, os.Interrupt, syscall.SIGTERM)
			<-force
			logger.Errorf("forced_exit reason=second_signal")
			os.Exit(130)
		}()

		d := daemon.New(cfg, newProcessor(cfg, logger), logger)
		return d.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
