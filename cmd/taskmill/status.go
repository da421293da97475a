package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"taskmill/internal/status"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and daemon state per source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		snap, err := status.Collect(cfg)
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		renderSnapshot(snap)
		return nil
	},
}

func renderSnapshot(snap status.Snapshot) {
	if snap.DaemonRunning {
		fmt.Printf("daemon: running (pid %d)\n", snap.DaemonPID)
	} else {
		fmt.Println("daemon: stopped")
	}
	if snap.UpdatedAt != "" {
		fmt.Printf("state updated: %s\n", snap.UpdatedAt)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"source", "pending", "running", "completed", "failed", "processing", "last processed"})

	for _, row := range snap.Sources {
		name := row.ID
		if row.ID == snap.CurrentSource {
			name = "* " + name
		}
		processing := row.ProcessingTask
		if processing == "" {
			processing = "-"
		}
		last := "-"
		if row.LastProcessedAt != nil {
			last = *row.LastProcessedAt
		}
		t.AppendRow(table.Row{name, row.Pending, row.Running, row.Completed, row.Failed, processing, last})
	}
	t.AppendFooter(table.Row{"total",
		"", "", snap.Global.TotalCompleted, snap.Global.TotalFailed, "", ""})

	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleRounded)
		t.Style().Color.Header = text.Colors{text.Bold}
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.Render()
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
