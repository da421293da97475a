package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskmill/internal/config"
)

var initWorkspace string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(configPath, initWorkspace); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initWorkspace, "workspace", ".taskmill", "project workspace directory to record in the config")
	rootCmd.AddCommand(initCmd)
}
