// Package daemon runs the long-lived watch-and-process loop: one fsnotify
// watcher over every source directory, a debounce window to absorb editor
// write bursts, and a periodic rescan that catches anything the watcher
// missed.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"taskmill/internal/config"
	"taskmill/internal/debounce"
	"taskmill/internal/lock"
	"taskmill/internal/logging"
	"taskmill/internal/model"
	"taskmill/internal/processor"
)

// ErrAlreadyRunning reports that another daemon holds the singleton lock.
var ErrAlreadyRunning = errors.New("daemon already running")

// debounce entries older than this get pruned on the maintenance tick.
const debounceMaxAge = time.Minute

type Daemon struct {
	cfg    *config.Config
	proc   *processor.Processor
	logger *logging.Logger

	singleton *lock.FileLock
	signal    *debounce.Signal

	// wake carries "work may exist" pokes to the per-source workers. One
	// buffered slot per source: a poke while a cycle is queued coalesces.
	wake map[string]chan struct{}
}

func New(cfg *config.Config, proc *processor.Processor, logger *logging.Logger) *Daemon {
	wake := make(map[string]chan struct{}, len(cfg.Sources))
	for _, src := range cfg.Sources {
		wake[src.ID] = make(chan struct{}, 1)
	}
	return &Daemon{
		cfg:       cfg,
		proc:      proc,
		logger:    logger.WithComponent("daemon"),
		singleton: lock.New(cfg.DaemonLockPath()),
		signal:    debounce.New(cfg.Settings.DebounceWindow()),
		wake:      wake,
	}
}

// Run blocks until ctx is cancelled or a fatal error occurs. Exactly one
// daemon may run per workspace; a second invocation fails fast with
// ErrAlreadyRunning.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.proc.EnsureWorkspace(); err != nil {
		return err
	}

	held, err := d.singleton.Acquire(0)
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !held {
		if owner, err := lock.ReadOwner(d.cfg.DaemonLockPath()); err == nil {
			return fmt.Errorf("%w (pid %d on %s)", ErrAlreadyRunning, owner.PID, owner.Host)
		}
		return ErrAlreadyRunning
	}
	defer func() { _ = d.singleton.Release() }()

	if err := d.proc.Startup(); err != nil {
		return err
	}
	if _, err := d.proc.Load(model.OriginLoad); err != nil && !errors.Is(err, processor.ErrBusy) {
		return err
	}

	watcher, err := d.startWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range d.cfg.Sources {
		srcID := src.ID
		g.Go(func() error { return d.worker(ctx, srcID) })
	}
	g.Go(func() error { return d.watchLoop(ctx, watcher) })
	g.Go(func() error { return d.tickLoop(ctx) })

	d.logger.Infof("daemon_started workspace=%s sources=%d pid=%d",
		d.cfg.ProjectWorkspace, len(d.cfg.Sources), lock.CurrentOwner().PID)

	// Drain anything queued before the daemon came up.
	d.wakeAll()

	err = g.Wait()
	d.logger.Infof("daemon_stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) startWatcher() (*fsnotify.Watcher, error) {
	if !d.cfg.Settings.WatchIsEnabled() {
		d.logger.Infof("watch_disabled fallback=periodic_scan")
		return fsnotify.NewWatcher()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, src := range d.cfg.Sources {
		if err := watcher.Add(src.PendingDir()); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", src.PendingDir(), err)
		}
		d.logger.Infof("watch_added source=%s path=%s", src.ID, src.PendingDir())
	}
	return watcher, nil
}

// worker serves one source: each wake runs a scan-merge pass followed by a
// processing run. Lock contention skips the cycle; the next tick retries.
func (d *Daemon) worker(ctx context.Context, sourceID string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake[sourceID]:
		}

		if _, err := d.proc.Load(model.OriginWatch); err != nil {
			if errors.Is(err, processor.ErrBusy) {
				d.logger.Infof("cycle_skipped source=%s reason=state_lock_busy", sourceID)
				continue
			}
			return err
		}
		summary, err := d.proc.Process(ctx, processor.ProcessOptions{})
		if err != nil {
			return err
		}
		if summary.Dispatched > 0 {
			d.logger.Infof("cycle_done source=%s dispatched=%d completed=%d failed=%d",
				sourceID, summary.Dispatched, summary.Completed, summary.Failed)
		}
	}
}

func (d *Daemon) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warnf("watch_error error=%v", err)
		}
	}
}

func (d *Daemon) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(event.Name)
	if _, ok := model.TaskIDFromFilename(name); !ok {
		return
	}
	if !d.signal.Notify(event.Name) {
		// Still inside the debounce window; a later event or the periodic
		// tick picks the file up.
		return
	}

	srcID := d.sourceForPath(filepath.Dir(event.Name))
	if srcID == "" {
		return
	}
	d.logger.Debugf("watch_event source=%s file=%s op=%s", srcID, name, event.Op)
	d.wakeSource(srcID)
}

// tickLoop is the watcher's safety net: a periodic rescan of every source
// plus debounce table maintenance.
func (d *Daemon) tickLoop(ctx context.Context) error {
	scan := time.NewTicker(d.cfg.Settings.ScanInterval())
	defer scan.Stop()
	cleanup := time.NewTicker(debounceMaxAge)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scan.C:
			d.wakeAll()
		case <-cleanup.C:
			if n := d.signal.Cleanup(debounceMaxAge); n > 0 {
				d.logger.Debugf("debounce_pruned entries=%d", n)
			}
		}
	}
}

func (d *Daemon) sourceForPath(dir string) string {
	for _, src := range d.cfg.Sources {
		if src.PendingDir() == dir {
			return src.ID
		}
	}
	return ""
}

func (d *Daemon) wakeSource(id string) {
	select {
	case d.wake[id] <- struct{}{}:
	default:
	}
}

func (d *Daemon) wakeAll() {
	for id := range d.wake {
		d.wakeSource(id)
	}
}
