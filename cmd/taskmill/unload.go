package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unloadCmd = &cobra.Command{
	Use:   "unload <source-id>",
	Short: "Remove a source and its queued tasks from the state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		p := newProcessor(cfg, logger)
		if err := p.Unload(args[0]); err != nil {
			return err
		}
		fmt.Printf("unloaded %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unloadCmd)
}
