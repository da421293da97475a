package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskmill/internal/model"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Scan all sources and enqueue new task files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		p := newProcessor(cfg, logger)
		if err := p.Startup(); err != nil {
			return err
		}
		summary, err := p.Load(model.OriginManual)
		if err != nil {
			return err
		}
		fmt.Printf("added=%d requeued=%d pruned=%d\n", summary.Added, summary.Requeued, summary.Pruned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
