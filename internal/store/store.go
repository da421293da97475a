// Package store provides atomic, corruption-proof persistence of the queue
// state document. Every mutation is a read-modify-persist cycle through this
// package; the rename at the end is what makes crash recovery possible.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"taskmill/internal/logging"
	"taskmill/internal/model"
)

// AtomicWriteJSON serializes doc and atomically replaces path. The document
// is written to a sibling temp file, synced, validated by re-reading, then
// renamed over the target. On any failure the temp file is removed and the
// original file is left untouched.
func AtomicWriteJSON(path string, doc any) error {
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return AtomicWriteRaw(path, append(content, '\n'))
}

func AtomicWriteRaw(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".taskmill-tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		// No-ops once the rename has happened.
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	if err := validateJSON(written); err != nil {
		return fmt.Errorf("json validation failed: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		bakPath := path + ".bak"
		if err := copyFile(path, bakPath); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// ReadJSON unmarshals path into out. Returns false when the file is absent
// or does not parse; neither case is an error, callers fall back to a
// default document.
func ReadJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, nil
	}
	return true, nil
}

func validateJSON(content []byte) error {
	var v any
	return json.Unmarshal(content, &v)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Store reads and writes the queue state document at a fixed path.
type Store struct {
	path   string
	logger *logging.Logger
}

func New(path string, logger *logging.Logger) *Store {
	return &Store{path: path, logger: logger.WithComponent("store")}
}

func (s *Store) Path() string {
	return s.path
}

// Save stamps the document and writes it atomically.
func (s *Store) Save(state *model.QueueState) error {
	state.Version = model.SchemaVersion
	state.UpdatedAt = model.NowUTC()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	return AtomicWriteJSON(s.path, state)
}

// Load returns the persisted queue state, migrated to the current schema.
// A missing file yields a fresh empty state; a corrupt file is quarantined
// and recovery falls back to the backup copy, then to a fresh state. Load
// never fails the caller for missing or unreadable content.
func (s *Store) Load() *model.QueueState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("load_state error=%v", err)
		}
		return model.NewQueueState()
	}

	state, err := decode(data)
	if err == nil {
		return state
	}

	s.logger.Warnf("state_corrupt path=%s error=%v", s.path, err)
	if qerr := quarantine(s.path); qerr != nil {
		s.logger.Warnf("quarantine_failed path=%s error=%v", s.path, qerr)
	}

	if bak, rerr := os.ReadFile(s.path + ".bak"); rerr == nil {
		if restored, derr := decode(bak); derr == nil {
			s.logger.Infof("state_restored_from_backup path=%s.bak", s.path)
			return restored
		}
	}

	s.logger.Warnf("state_reset path=%s starting empty", s.path)
	return model.NewQueueState()
}

func decode(data []byte) (*model.QueueState, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return Migrate(probe.Version, data)
}

// quarantine moves a corrupt state file aside with a timestamped suffix so
// the bytes survive for manual inspection.
func quarantine(path string) error {
	name := fmt.Sprintf("%s.%s.corrupt", path, time.Now().UTC().Format("20060102T150405"))
	return os.Rename(path, name)
}
