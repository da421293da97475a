package processor

import (
	"context"
	"fmt"

	"taskmill/internal/config"
	"taskmill/internal/coordinator"
	"taskmill/internal/executor"
	"taskmill/internal/lock"
	"taskmill/internal/model"
)

// How many lock-acquisition windows finishTask retries before giving up.
// Losing a result record is far worse than waiting out contention.
const finishLockRetries = 30

// ProcessOptions tunes one processing run.
type ProcessOptions struct {
	// Limit caps dispatches for this run; 0 falls back to the configured
	// batch limit (0 there too means drain until no source is eligible).
	Limit int
}

type ProcessSummary struct {
	Dispatched int
	Completed  int
	Failed     int
	Retried    int
	// Skipped is set when the state lock stayed busy; the cycle should be
	// retried later rather than treated as an error.
	Skipped bool
}

// claim is a dispatched task: state already persisted as running, lock
// released, execution not yet started.
type claim struct {
	taskID   string
	sourceID string
	specPath string
	attempt  int
	source   config.SourceConfig
}

// Process repeatedly asks the coordinator for the next eligible source,
// executes that source's oldest pending task, and records the outcome. It
// stops when no source is eligible, the batch limit is reached, or ctx is
// cancelled. Safe for concurrent use; concurrent calls execute different
// sources in parallel.
func (p *Processor) Process(ctx context.Context, opts ProcessOptions) (ProcessSummary, error) {
	var summary ProcessSummary

	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.Settings.BatchLimit
	}

	for {
		if ctx.Err() != nil {
			break
		}
		if limit > 0 && summary.Dispatched >= limit {
			break
		}

		c, ok, err := p.claimNext()
		if err != nil {
			if err == ErrBusy {
				summary.Skipped = true
				p.logger.Infof("process_skipped reason=state_lock_busy")
				break
			}
			return summary, err
		}
		if !ok {
			break
		}
		summary.Dispatched++

		// Shutdown stops the loop between tasks; an in-flight execution is
		// allowed to finish rather than being killed with the context.
		res := p.exec.Execute(context.WithoutCancel(ctx), executor.Request{
			TaskID:   c.taskID,
			SourceID: c.sourceID,
			SpecPath: c.specPath,
			Workdir:  p.cfg.ProjectWorkspace,
			Attempt:  c.attempt,
		})

		outcome, err := p.finishTask(c, res)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case model.StatusCompleted:
			summary.Completed++
		case model.StatusFailed:
			summary.Failed++
		case model.StatusPending:
			summary.Retried++
		}
	}

	return summary, nil
}

// claimNext picks the next eligible source via the coordinator and marks its
// oldest pending task running, all inside one locked read-modify-persist
// cycle. ok is false when no source is eligible.
func (p *Processor) claimNext() (claim, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acquired, err := p.stateLock.Acquire(p.cfg.Settings.LockTimeout())
	if err != nil {
		return claim{}, false, err
	}
	if !acquired {
		return claim{}, false, ErrBusy
	}
	defer func() { _ = p.stateLock.Release() }()

	state := p.store.Load()
	dirty := p.recoverAbandoned(state)

	pending := p.eligibleSources(state)
	now := model.NowUTC()

	srcID, coord, ok := coordinator.Next(state.Coordinator, pending, now)
	if !ok {
		if dirty {
			if err := p.store.Save(state); err != nil {
				return claim{}, false, err
			}
		}
		return claim{}, false, nil
	}

	state.Coordinator = coord
	src := state.Sources[srcID]
	task := src.OldestPending()

	owner := lock.CurrentOwner()
	task.Status = model.StatusRunning
	task.Attempts++
	task.StartedAt = model.StringPtr(now)
	task.Error = nil
	src.Processing = &model.ProcessingMarker{
		TaskID:    task.ID,
		PID:       owner.PID,
		Host:      owner.Host,
		StartedAt: now,
	}

	cfgSrc := p.cfg.Source(srcID)
	if cfgSrc == nil {
		// Source exists in state but not in config; should have been
		// excluded from eligibility.
		return claim{}, false, fmt.Errorf("source %q not configured", srcID)
	}
	p.writeTaskMarkers(cfgSrc.PendingDir(), task.ID, owner)

	if err := p.store.Save(state); err != nil {
		// Without a persisted running record the task must not execute.
		p.clearTaskMarkers(cfgSrc.PendingDir(), task.ID)
		return claim{}, false, fmt.Errorf("persist claim for %s: %w", task.ID, err)
	}

	p.logger.Infof("task_dispatched source=%s task=%s attempt=%d", srcID, task.ID, task.Attempts)

	return claim{
		taskID:   task.ID,
		sourceID: srcID,
		specPath: task.SpecPath,
		attempt:  task.Attempts,
		source:   *cfgSrc,
	}, true, nil
}

// eligibleSources returns the set of sources that may dispatch right now: a
// pending task exists, the source is configured, and nothing is currently
// executing for it.
func (p *Processor) eligibleSources(state *model.QueueState) map[string]bool {
	pending := make(map[string]bool)
	for id, src := range state.Sources {
		cfgSrc := p.cfg.Source(id)
		if cfgSrc == nil || src.Processing != nil || !src.HasPending() {
			continue
		}

		// A running marker left by another process means the task is in
		// flight even if this state snapshot has no processing record.
		oldest := src.OldestPending()
		busy, reclaimed, err := lock.MarkerBusy(lock.RunningMarkerPath(cfgSrc.PendingDir(), oldest.ID))
		if err != nil {
			p.logger.Warnf("marker_probe_failed source=%s task=%s error=%v", id, oldest.ID, err)
			continue
		}
		if reclaimed {
			p.logger.Infof("stale_marker_reclaimed source=%s task=%s", id, oldest.ID)
		}
		if busy {
			continue
		}
		pending[id] = true
	}
	return pending
}

func (p *Processor) writeTaskMarkers(pendingDir, taskID string, owner lock.Owner) {
	if err := lock.WriteRunningMarker(lock.RunningMarkerPath(pendingDir, taskID), owner); err != nil {
		p.logger.Warnf("write_running_marker task=%s error=%v", taskID, err)
	}
	if err := lock.WriteRunningMarker(lock.TaskLockPath(pendingDir, taskID), owner); err != nil {
		p.logger.Warnf("write_task_lock task=%s error=%v", taskID, err)
	}
}

// finishTask records the executor's verdict, persists it, and moves the
// specification file to its terminal location. Returns the task's resulting
// status.
func (p *Processor) finishTask(c claim, res executor.Result) (model.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acquired := false
	for i := 0; i < finishLockRetries; i++ {
		ok, err := p.stateLock.Acquire(p.cfg.Settings.LockTimeout())
		if err != nil {
			return "", err
		}
		if ok {
			acquired = true
			break
		}
	}
	if !acquired {
		return "", fmt.Errorf("record result for %s: %w", c.taskID, ErrBusy)
	}
	defer func() { _ = p.stateLock.Release() }()

	state := p.store.Load()
	now := model.NowUTC()

	outcome := model.StatusFailed
	src, ok := state.Sources[c.sourceID]
	if !ok {
		// Source unloaded mid-flight; nothing to record against.
		p.logger.Warnf("finish_orphaned source=%s task=%s", c.sourceID, c.taskID)
	} else {
		outcome = p.applyResult(src, c, res, now)
		switch outcome {
		case model.StatusCompleted:
			state.GlobalStatistics.TotalCompleted++
		case model.StatusFailed:
			state.GlobalStatistics.TotalFailed++
		}
		state.GlobalStatistics.LastProcessedAt = model.StringPtr(now)
		if err := p.store.Save(state); err != nil {
			return "", fmt.Errorf("persist result for %s: %w", c.taskID, err)
		}
	}

	p.clearTaskMarkers(c.source.PendingDir(), c.taskID)
	p.writeResultDocument(c, res, outcome, now)

	switch outcome {
	case model.StatusCompleted:
		p.archiveSpec(c)
	case model.StatusFailed:
		p.moveToFailed(c, res.Error)
	}

	return outcome, nil
}

func (p *Processor) applyResult(src *model.SourceState, c claim, res executor.Result, now string) model.Status {
	task := src.FindTask(c.taskID)
	if task == nil {
		p.logger.Warnf("finish_missing_task source=%s task=%s", c.sourceID, c.taskID)
		src.Processing = nil
		return model.StatusFailed
	}

	var outcome model.Status
	switch {
	case res.Success:
		outcome = model.StatusCompleted
		task.Status = model.StatusCompleted
		task.CompletedAt = model.StringPtr(now)
		task.Error = nil
		src.Statistics.TotalCompleted++
		p.logger.Infof("task_completed source=%s task=%s attempt=%d", c.sourceID, c.taskID, c.attempt)
	case task.Attempts < p.cfg.Settings.MaxAttempts:
		// Attempts remain; back to pending for a later cycle.
		outcome = model.StatusPending
		task.Status = model.StatusPending
		task.StartedAt = nil
		task.CompletedAt = nil
		task.Error = model.StringPtr(res.Error)
		p.logger.Warnf("task_retry source=%s task=%s attempt=%d max=%d error=%s",
			c.sourceID, c.taskID, task.Attempts, p.cfg.Settings.MaxAttempts, res.Error)
	default:
		outcome = model.StatusFailed
		task.Status = model.StatusFailed
		task.CompletedAt = model.StringPtr(now)
		task.Error = model.StringPtr(res.Error)
		src.Statistics.TotalFailed++
		p.logger.Errorf("task_failed source=%s task=%s attempt=%d error=%s",
			c.sourceID, c.taskID, c.attempt, res.Error)
	}

	src.Processing = nil
	src.Statistics.LastProcessedAt = model.StringPtr(now)
	return outcome
}
