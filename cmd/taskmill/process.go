package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"taskmill/internal/model"
	"taskmill/internal/processor"
)

var processLimit int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one processing batch and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := newProcessor(cfg, logger)
		if err := p.Startup(); err != nil {
			return err
		}
		if _, err := p.Load(model.OriginManual); err != nil {
			return err
		}
		summary, err := p.Process(ctx, processor.ProcessOptions{Limit: processLimit})
		if err != nil {
			return err
		}

		fmt.Printf("dispatched=%d completed=%d failed=%d retried=%d\n",
			summary.Dispatched, summary.Completed, summary.Failed, summary.Retried)
		if summary.Skipped {
			fmt.Println("skipped: state file busy, retry later")
		}
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "maximum tasks to dispatch this run (0 = configured batch limit)")
	rootCmd.AddCommand(processCmd)
}
