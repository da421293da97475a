// Package processor orchestrates the scan → enqueue → coordinate → execute →
// archive lifecycle. It exclusively owns the in-memory queue state; every
// mutation is a read-modify-persist cycle performed while holding the
// interprocess state lock.
package processor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"taskmill/internal/config"
	"taskmill/internal/coordinator"
	"taskmill/internal/executor"
	"taskmill/internal/lock"
	"taskmill/internal/logging"
	"taskmill/internal/model"
	"taskmill/internal/scanner"
	"taskmill/internal/store"
)

// ErrBusy reports that the state lock stayed contended for the whole
// acquisition window. The cycle is skipped, not failed.
var ErrBusy = errors.New("state file busy")

type Processor struct {
	cfg       *config.Config
	store     *store.Store
	stateLock *lock.FileLock
	scn       *scanner.Scanner
	exec      executor.Executor
	logger    *logging.Logger

	// Serializes state-file cycles within this process; execution itself
	// happens outside the critical section so sources run in parallel.
	mu sync.Mutex
}

func New(cfg *config.Config, exec executor.Executor, logger *logging.Logger) *Processor {
	stateLock := lock.New(cfg.StateLockPath())
	stateLock.SetPollInterval(cfg.Settings.LockPollInterval())

	return &Processor{
		cfg:       cfg,
		store:     store.New(cfg.StatePath(), logger),
		stateLock: stateLock,
		scn:       scanner.New(cfg.Settings.WatchPatterns, cfg.Settings.FingerprintEnabled()),
		exec:      exec,
		logger:    logger.WithComponent("processor"),
	}
}

// EnsureWorkspace creates the workspace and per-source directory trees.
// Failures here are validation errors and abort startup.
func (p *Processor) EnsureWorkspace() error {
	dirs := []string{
		p.cfg.ProjectWorkspace,
		p.cfg.LogDir(),
	}
	for _, src := range p.cfg.Sources {
		dirs = append(dirs, src.PendingDir(), src.ArchiveDir(), src.FailedDir(), src.ResultsDir())
	}
	// Parent dirs of the state and lock files.
	dirs = append(dirs,
		filepath.Dir(p.cfg.StatePath()),
		filepath.Dir(p.cfg.StateLockPath()),
	)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return nil
}

// Startup prepares the workspace, registers configured sources, and
// recovers tasks abandoned by a crashed owner. Call once before Load or
// Process.
func (p *Processor) Startup() error {
	if err := p.EnsureWorkspace(); err != nil {
		return err
	}

	return p.withState(func(state *model.QueueState) error {
		p.registerSources(state)
		p.recoverAbandoned(state)
		return nil
	})
}

// withState runs fn inside a locked read-modify-persist cycle. Lock
// contention surfaces as ErrBusy.
func (p *Processor) withState(fn func(*model.QueueState) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok, err := p.stateLock.Acquire(p.cfg.Settings.LockTimeout())
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	defer func() { _ = p.stateLock.Release() }()

	state := p.store.Load()
	if err := fn(state); err != nil {
		return err
	}
	return p.store.Save(state)
}

// registerSources appends configured sources the state does not know yet,
// preserving the existing coordinator order.
func (p *Processor) registerSources(state *model.QueueState) {
	for _, src := range p.cfg.Sources {
		existing, ok := state.Sources[src.ID]
		if !ok {
			state.Sources[src.ID] = &model.SourceState{
				ID:   src.ID,
				Path: src.PendingDir(),
			}
			state.Coordinator = coordinator.AddSource(state.Coordinator, src.ID)
			p.logger.Infof("source_registered source=%s path=%s", src.ID, src.PendingDir())
			continue
		}
		if existing.Path != src.PendingDir() {
			p.logger.Infof("source_moved source=%s from=%s to=%s", src.ID, existing.Path, src.PendingDir())
			existing.Path = src.PendingDir()
		}
		// Sources present in state but no longer configured stay untouched;
		// removal is an explicit administrative unload.
		state.Coordinator = coordinator.AddSource(state.Coordinator, src.ID)
	}
}

// recoverAbandoned returns crash-abandoned running tasks to pending. A
// processing marker whose owner pid is dead means the previous holder never
// got to record a result. Reports whether the state changed.
func (p *Processor) recoverAbandoned(state *model.QueueState) bool {
	dirty := false
	for id, src := range state.Sources {
		if src.Processing == nil {
			continue
		}
		if lock.PIDAlive(src.Processing.PID) {
			continue
		}

		taskID := src.Processing.TaskID
		p.logger.Infof("stale_owner_reclaimed source=%s task=%s pid=%d", id, taskID, src.Processing.PID)

		if task := src.FindTask(taskID); task != nil && task.Status == model.StatusRunning {
			task.Status = model.StatusPending
			task.StartedAt = nil
		}
		src.Processing = nil

		cfgSrc := p.cfg.Source(id)
		if cfgSrc != nil {
			p.clearTaskMarkers(cfgSrc.PendingDir(), taskID)
		}
		dirty = true
	}
	return dirty
}

func (p *Processor) clearTaskMarkers(pendingDir, taskID string) {
	if err := lock.ClearMarker(lock.RunningMarkerPath(pendingDir, taskID)); err != nil {
		p.logger.Warnf("clear_running_marker task=%s error=%v", taskID, err)
	}
	if err := lock.ClearMarker(lock.TaskLockPath(pendingDir, taskID)); err != nil {
		p.logger.Warnf("clear_task_lock task=%s error=%v", taskID, err)
	}
}

// Unload removes a source and its queue from the state. Refused while the
// source is executing a task under a live owner.
func (p *Processor) Unload(sourceID string) error {
	return p.withState(func(state *model.QueueState) error {
		src, ok := state.Sources[sourceID]
		if !ok {
			return fmt.Errorf("unknown source %q", sourceID)
		}
		if src.Processing != nil && lock.PIDAlive(src.Processing.PID) {
			return fmt.Errorf("source %q is processing task %s", sourceID, src.Processing.TaskID)
		}
		delete(state.Sources, sourceID)
		state.Coordinator = coordinator.RemoveSource(state.Coordinator, sourceID)
		p.logger.Infof("source_unloaded source=%s", sourceID)
		return nil
	})
}
