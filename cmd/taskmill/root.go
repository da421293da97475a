package main

import (
	"os"

	"github.com/spf13/cobra"

	"taskmill/internal/config"
	"taskmill/internal/executor"
	"taskmill/internal/logging"
	"taskmill/internal/processor"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "taskmill",
	Short: "Crash-tolerant task queue over watched spec-file directories",
	Long: `taskmill watches directories for task specification files, queues
them per source, and dispatches them round-robin to an external executor.
State survives crashes; concurrent instances coordinate through file locks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	return logging.New(os.Stderr, level, "taskmill")
}

// newProcessor wires the full stack from a validated config.
func newProcessor(cfg *config.Config, logger *logging.Logger) *processor.Processor {
	exec := executor.NewCommandExecutor(cfg.Executor, logger)
	return processor.New(cfg, exec, logger)
}
