package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Task ids follow task-YYYYMMDD-HHMMSS with an optional trailing
// description. The zero-padded timestamp makes lexicographic order
// chronological.
var taskIDRegex = regexp.MustCompile(`^task-(\d{8})-(\d{6})(?:-([A-Za-z0-9][A-Za-z0-9_-]*))?$`)

func ValidTaskID(id string) bool {
	return taskIDRegex.MatchString(id)
}

// TaskIDFromFilename strips the extension from a file name and validates the
// remainder as a task id. Returns false for anything that does not match;
// callers skip those entries silently.
func TaskIDFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if !ValidTaskID(id) {
		return "", false
	}
	return id, true
}

// TaskIDTimestamp parses the embedded submission time.
func TaskIDTimestamp(id string) (time.Time, error) {
	m := taskIDRegex.FindStringSubmatch(id)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid task id: %s", id)
	}
	ts, err := time.Parse("20060102-150405", m[1]+"-"+m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp from task id %s: %w", id, err)
	}
	return ts, nil
}

// TaskIDDescription returns the free-form suffix, or "" when absent.
func TaskIDDescription(id string) string {
	m := taskIDRegex.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return m[3]
}
