package model

import (
	"testing"
	"time"
)

func TestValidTaskID(t *testing.T) {
	valid := []string{
		"task-20260115-093000",
		"task-20260115-093000-fix-login",
		"task-20260115-093000-a",
		"task-19991231-235959-refactor_parser",
	}
	for _, id := range valid {
		if !ValidTaskID(id) {
			t.Errorf("expected valid: %s", id)
		}
	}

	invalid := []string{
		"",
		"task-2026015-093000",       // 7-digit date
		"task-20260115-93000",       // 5-digit time
		"task-20260115-0930000",     // 7-digit time
		"task-2026011a-093000",      // non-numeric date
		"task-20260115-09300x",      // non-numeric time
		"job-20260115-093000",       // wrong prefix
		"20260115-093000",           // missing prefix
		"task-20260115-093000-",     // empty description
		"task-20260115-093000--two", // description starts with separator
	}
	for _, id := range invalid {
		if ValidTaskID(id) {
			t.Errorf("expected invalid: %s", id)
		}
	}
}

func TestTaskIDFromFilename(t *testing.T) {
	id, ok := TaskIDFromFilename("task-20260115-093000-fix-login.md")
	if !ok {
		t.Fatal("expected valid filename")
	}
	if id != "task-20260115-093000-fix-login" {
		t.Errorf("id: got %q", id)
	}

	if _, ok := TaskIDFromFilename("notes.md"); ok {
		t.Error("expected invalid filename")
	}
	if _, ok := TaskIDFromFilename(".task-20260115-093000.running"); ok {
		t.Error("hidden marker should not parse as a task id")
	}
}

func TestTaskIDTimestamp(t *testing.T) {
	ts, err := TaskIDTimestamp("task-20260115-093000-fix")
	if err != nil {
		t.Fatalf("TaskIDTimestamp failed: %v", err)
	}
	want := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", ts, want)
	}

	if _, err := TaskIDTimestamp("garbage"); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestTaskIDDescription(t *testing.T) {
	if d := TaskIDDescription("task-20260115-093000-fix-login"); d != "fix-login" {
		t.Errorf("description: got %q", d)
	}
	if d := TaskIDDescription("task-20260115-093000"); d != "" {
		t.Errorf("description: got %q, want empty", d)
	}
}
