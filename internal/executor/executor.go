// Package executor defines the boundary to the external agent-execution
// service. The core treats execution as an opaque, potentially slow,
// potentially failing call; the only contract is the Result shape.
package executor

import "context"

// Request carries everything an executor needs for one attempt.
type Request struct {
	TaskID   string
	SourceID string
	SpecPath string
	Workdir  string
	Attempt  int
}

// Usage is optional executor-reported cost metadata, passed through to the
// task's result document untouched.
type Usage struct {
	InputTokens  int64   `json:"input_tokens,omitempty"`
	OutputTokens int64   `json:"output_tokens,omitempty"`
	DurationSec  float64 `json:"duration_sec,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
}

// Result is the executor's verdict on one attempt.
type Result struct {
	Success bool
	Output  string
	Error   string
	Usage   *Usage
}

// Executor runs one task attempt synchronously. Implementations must honor
// ctx cancellation; the core applies no timeout of its own.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}
