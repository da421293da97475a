// Package model defines the persisted data structures for taskmill's queue
// state: task records, per-source queues, and the scheduling coordinator.
package model

import "time"

// SchemaVersion is the current on-disk schema of the queue state document.
const SchemaVersion = 1

// TaskRecord is one discovered unit of work. The id is derived from the
// specification filename and is unique within its source.
type TaskRecord struct {
	ID                 string  `json:"id"`
	SpecPath           string  `json:"spec_path"`
	SourceID           string  `json:"source_id"`
	Status             Status  `json:"status"`
	Origin             Origin  `json:"origin"`
	Attempts           int     `json:"attempts"`
	ContentFingerprint string  `json:"content_fingerprint,omitempty"`
	SizeBytes          int64   `json:"size_bytes"`
	EnqueuedAt         string  `json:"enqueued_at"`
	StartedAt          *string `json:"started_at"`
	CompletedAt        *string `json:"completed_at"`
	Error              *string `json:"error"`
}

// ProcessingMarker records the task currently executing for a source and the
// owner identity used for liveness checks.
type ProcessingMarker struct {
	TaskID    string `json:"task_id"`
	PID       int    `json:"pid"`
	Host      string `json:"host"`
	StartedAt string `json:"started_at"`
}

type SourceStatistics struct {
	TotalQueued     int     `json:"total_queued"`
	TotalCompleted  int     `json:"total_completed"`
	TotalFailed     int     `json:"total_failed"`
	LastProcessedAt *string `json:"last_processed_at"`
	LastLoadedAt    *string `json:"last_loaded_at"`
}

// SourceState is one watched directory. Queue order is arrival order (FIFO).
type SourceState struct {
	ID         string           `json:"id"`
	Path       string           `json:"path"`
	Queue      []TaskRecord     `json:"queue"`
	Processing *ProcessingMarker `json:"processing"`
	Statistics SourceStatistics `json:"statistics"`
}

// CoordinatorState is the round-robin scheduling cursor. SourceOrder is
// append-only and preserves relative order across restarts.
type CoordinatorState struct {
	SourceOrder   []string `json:"source_order"`
	CurrentSource *string  `json:"current_source"`
	LastSwitch    *string  `json:"last_switch"`
}

type GlobalStatistics struct {
	TotalQueued     int     `json:"total_queued"`
	TotalCompleted  int     `json:"total_completed"`
	TotalFailed     int     `json:"total_failed"`
	LastProcessedAt *string `json:"last_processed_at"`
}

// QueueState is the root persisted document.
type QueueState struct {
	Version          int                     `json:"version"`
	Sources          map[string]*SourceState `json:"sources"`
	Coordinator      CoordinatorState        `json:"coordinator"`
	GlobalStatistics GlobalStatistics        `json:"global_statistics"`
	UpdatedAt        string                  `json:"updated_at"`
}

func NewQueueState() *QueueState {
	return &QueueState{
		Version: SchemaVersion,
		Sources: make(map[string]*SourceState),
	}
}

// FindTask returns a pointer into the queue for the given task id, or nil.
func (s *SourceState) FindTask(id string) *TaskRecord {
	for i := range s.Queue {
		if s.Queue[i].ID == id {
			return &s.Queue[i]
		}
	}
	return nil
}

// OldestPending returns a pointer to the first pending task in arrival
// order, or nil when the source has no pending work.
func (s *SourceState) OldestPending() *TaskRecord {
	for i := range s.Queue {
		if s.Queue[i].Status == StatusPending {
			return &s.Queue[i]
		}
	}
	return nil
}

func (s *SourceState) HasPending() bool {
	return s.OldestPending() != nil
}

// RunningCount reports how many tasks are marked running. The per-source
// invariant is that this never exceeds one.
func (s *SourceState) RunningCount() int {
	n := 0
	for i := range s.Queue {
		if s.Queue[i].Status == StatusRunning {
			n++
		}
	}
	return n
}

// NowUTC formats the current time the way all persisted timestamps are
// stored.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func StringPtr(s string) *string {
	return &s
}
