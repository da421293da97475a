package processor

import (
	"path/filepath"

	"github.com/google/uuid"

	"taskmill/internal/executor"
	"taskmill/internal/model"
	"taskmill/internal/store"
)

// resultDocument is the per-task execution record written next to the
// source's queue. One document per attempt chain; a retry overwrites the
// previous attempt's document.
type resultDocument struct {
	ResultID    string          `json:"result_id"`
	TaskID      string          `json:"task_id"`
	SourceID    string          `json:"source_id"`
	Attempt     int             `json:"attempt"`
	Success     bool            `json:"success"`
	Status      model.Status    `json:"status"`
	CompletedAt string          `json:"completed_at"`
	Error       string          `json:"error,omitempty"`
	Output      string          `json:"output,omitempty"`
	Usage       *executor.Usage `json:"usage,omitempty"`
}

func (p *Processor) writeResultDocument(c claim, res executor.Result, outcome model.Status, now string) {
	doc := resultDocument{
		ResultID:    uuid.NewString(),
		TaskID:      c.taskID,
		SourceID:    c.sourceID,
		Attempt:     c.attempt,
		Success:     res.Success,
		Status:      outcome,
		CompletedAt: now,
		Error:       res.Error,
		Output:      res.Output,
		Usage:       res.Usage,
	}

	path := filepath.Join(c.source.ResultsDir(), c.taskID+".json")
	if err := store.AtomicWriteJSON(path, doc); err != nil {
		p.logger.Warnf("write_result task=%s error=%v", c.taskID, err)
		return
	}
	p.logger.Infof("result_written task=%s path=%s", c.taskID, path)
}
