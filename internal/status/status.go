// Package status builds read-only snapshots of the queue for display. It
// reads the state file directly without taking the interprocess lock, so a
// status query never delays or blocks a processing cycle; the snapshot may
// trail a concurrent writer by one atomic rename.
package status

import (
	"fmt"
	"sort"

	"taskmill/internal/config"
	"taskmill/internal/lock"
	"taskmill/internal/model"
	"taskmill/internal/store"
)

// SourceSummary is one row of the status report.
type SourceSummary struct {
	ID              string  `json:"id"`
	Path            string  `json:"path"`
	Pending         int     `json:"pending"`
	Running         int     `json:"running"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	ProcessingTask  string  `json:"processing_task,omitempty"`
	ProcessingPID   int     `json:"processing_pid,omitempty"`
	LastProcessedAt *string `json:"last_processed_at"`
}

// Snapshot is the full report: per-source rows in scheduling order plus
// daemon and scheduling state.
type Snapshot struct {
	Sources       []SourceSummary        `json:"sources"`
	CurrentSource string                 `json:"current_source,omitempty"`
	Global        model.GlobalStatistics `json:"global"`
	DaemonRunning bool                   `json:"daemon_running"`
	DaemonPID     int                    `json:"daemon_pid,omitempty"`
	UpdatedAt     string                 `json:"updated_at,omitempty"`
}

// Collect reads the persisted state and the daemon lock. A missing state
// file yields an empty snapshot, not an error.
func Collect(cfg *config.Config) (Snapshot, error) {
	var snap Snapshot

	var state model.QueueState
	found, err := store.ReadJSON(cfg.StatePath(), &state)
	if err != nil {
		return snap, fmt.Errorf("read state: %w", err)
	}
	if found {
		snap.UpdatedAt = state.UpdatedAt
		snap.Global = state.GlobalStatistics
		if state.Coordinator.CurrentSource != nil {
			snap.CurrentSource = *state.Coordinator.CurrentSource
		}
		snap.Sources = summarize(&state)
	}

	if owner, err := lock.ReadOwner(cfg.DaemonLockPath()); err == nil && lock.PIDAlive(owner.PID) {
		snap.DaemonRunning = true
		snap.DaemonPID = owner.PID
	}
	return snap, nil
}

// summarize orders rows by the coordinator's scheduling order; sources in
// the state but missing from the order (mid-migration) trail at the end.
func summarize(state *model.QueueState) []SourceSummary {
	rows := make([]SourceSummary, 0, len(state.Sources))
	seen := make(map[string]bool, len(state.Sources))

	for _, id := range state.Coordinator.SourceOrder {
		if src, ok := state.Sources[id]; ok {
			rows = append(rows, summarizeSource(src))
			seen[id] = true
		}
	}
	var missing []string
	for id := range state.Sources {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	for _, id := range missing {
		rows = append(rows, summarizeSource(state.Sources[id]))
	}
	return rows
}

func summarizeSource(src *model.SourceState) SourceSummary {
	row := SourceSummary{
		ID:              src.ID,
		Path:            src.Path,
		LastProcessedAt: src.Statistics.LastProcessedAt,
	}
	for _, task := range src.Queue {
		switch task.Status {
		case model.StatusPending:
			row.Pending++
		case model.StatusRunning:
			row.Running++
		case model.StatusCompleted:
			row.Completed++
		case model.StatusFailed:
			row.Failed++
		}
	}
	if src.Processing != nil {
		row.ProcessingTask = src.Processing.TaskID
		row.ProcessingPID = src.Processing.PID
	}
	return row
}
