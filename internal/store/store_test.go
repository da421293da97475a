package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskmill/internal/logging"
	"taskmill/internal/model"
)

func TestAtomicWriteJSON_Success(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	data := map[string]any{"key": "value", "count": 42}
	if err := AtomicWriteJSON(path, data); err != nil {
		t.Fatalf("AtomicWriteJSON failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(content, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("key: got %v, want %q", result["key"], "value")
	}
}

func TestAtomicWriteJSON_FailureLeavesOriginalUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	if err := AtomicWriteJSON(path, map[string]string{"version": "1"}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	// Channels are not serializable; marshaling fails before any file I/O.
	if err := AtomicWriteJSON(path, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(before) != string(after) {
		t.Error("target content changed after failed write")
	}
}

func TestAtomicWriteRaw_InvalidJSONLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	if err := AtomicWriteRaw(path, []byte("{not json")); err == nil {
		t.Fatal("expected validation error")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target should not exist after failed write")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".taskmill-tmp-") {
			t.Errorf("leftover temp file: %s", entry.Name())
		}
	}
}

func TestAtomicWriteRaw_CreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	if err := AtomicWriteRaw(path, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWriteRaw(path, []byte(`{"version":2}`)); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("ReadFile .bak failed: %v", err)
	}
	if string(bak) != `{"version":1}` {
		t.Errorf("backup content: got %s", bak)
	}
}

func TestReadJSON_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	var out map[string]any
	ok, err := ReadJSON(filepath.Join(dir, "absent.json"), &out)
	if err != nil || ok {
		t.Errorf("missing file: got ok=%v err=%v", ok, err)
	}

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = ReadJSON(path, &out)
	if err != nil || ok {
		t.Errorf("corrupt file: got ok=%v err=%v", ok, err)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "state", "queue.json"), logging.Nop())

	state := model.NewQueueState()
	state.Sources["main"] = &model.SourceState{
		ID:   "main",
		Path: "/tmp/main",
		Queue: []model.TaskRecord{
			{ID: "task-20260101-000001", Status: model.StatusPending, SourceID: "main"},
		},
	}
	state.Coordinator.SourceOrder = []string{"main"}

	if err := s.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := s.Load()
	if loaded.Version != model.SchemaVersion {
		t.Errorf("version: got %d", loaded.Version)
	}
	if len(loaded.Sources["main"].Queue) != 1 {
		t.Fatalf("queue: got %d entries", len(loaded.Sources["main"].Queue))
	}
	if loaded.Sources["main"].Queue[0].ID != "task-20260101-000001" {
		t.Errorf("task id: got %q", loaded.Sources["main"].Queue[0].ID)
	}
	if loaded.UpdatedAt == "" {
		t.Error("UpdatedAt should be stamped")
	}
}

func TestStore_LoadMissingReturnsFresh(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "queue.json"), logging.Nop())
	state := s.Load()
	if state == nil || len(state.Sources) != 0 {
		t.Fatalf("expected fresh empty state, got %+v", state)
	}
	if state.Version != model.SchemaVersion {
		t.Errorf("version: got %d", state.Version)
	}
}

func TestStore_LoadCorruptQuarantinesAndResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path, logging.Nop())
	state := s.Load()
	if len(state.Sources) != 0 {
		t.Error("expected fresh state after corruption")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	quarantined := false
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".corrupt") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Error("corrupt file should be quarantined")
	}
}

func TestStore_LoadCorruptFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	s := New(path, logging.Nop())

	state := model.NewQueueState()
	state.Sources["aux"] = &model.SourceState{ID: "aux", Path: "/tmp/aux"}
	if err := s.Save(state); err != nil {
		t.Fatal(err)
	}
	// Second save produces the .bak; then corrupt the live file.
	if err := s.Save(state); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := s.Load()
	if _, ok := loaded.Sources["aux"]; !ok {
		t.Error("expected state restored from backup")
	}
}
