package model

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Origin records how a task entered the queue.
type Origin string

const (
	OriginLoad   Origin = "load"
	OriginManual Origin = "manual"
	OriginWatch  Origin = "watch"
	OriginReload Origin = "reload"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// Task status transitions: pending ↔ running → terminal.
// completed → pending is the fingerprint-change requeue path; failed →
// pending is the bounded retry path.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusPending:   true, // abandoned owner recovery
		StatusCompleted: true,
		StatusFailed:    true,
	},
	StatusCompleted: {
		StatusPending: true, // spec file edited after completion
	},
	StatusFailed: {
		StatusPending: true, // retry while attempts remain
	},
}

func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

func ValidateTransition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task transition: %q → %q", from, to)
	}
	return nil
}
