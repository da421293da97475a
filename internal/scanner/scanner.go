// Package scanner discovers task specification files in source directories
// and computes content fingerprints for change detection.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"taskmill/internal/model"
)

// Discovered is one valid specification file found by a scan.
type Discovered struct {
	TaskID      string
	Path        string
	SizeBytes   int64
	Fingerprint string // empty when fingerprinting is disabled or the file is empty
}

type Scanner struct {
	patterns    []string
	fingerprint bool
}

// New builds a scanner matching the given glob patterns (defaults to *.md).
func New(patterns []string, fingerprint bool) *Scanner {
	if len(patterns) == 0 {
		patterns = []string{"*.md"}
	}
	return &Scanner{patterns: patterns, fingerprint: fingerprint}
}

// Scan lists the immediate entries of dir that carry a valid task id and
// match a configured pattern. Everything else (subdirectories, hidden marker
// files, misnamed files) is skipped silently. The result is sorted by
// filename, which the zero-padded id timestamps make chronological.
func (s *Scanner) Scan(dir string) ([]Discovered, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var found []Discovered
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !s.matchesPattern(name) {
			continue
		}
		taskID, ok := model.TaskIDFromFilename(name)
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Entry vanished between listing and stat; treat as not there.
			continue
		}

		d := Discovered{
			TaskID:    taskID,
			Path:      filepath.Join(dir, name),
			SizeBytes: info.Size(),
		}
		if s.fingerprint && info.Size() > 0 {
			fp, err := Fingerprint(d.Path)
			if err != nil {
				return nil, fmt.Errorf("fingerprint %s: %w", d.Path, err)
			}
			d.Fingerprint = fp
		}
		found = append(found, d)
	}

	// os.ReadDir returns entries sorted by name already; keep the guarantee
	// explicit for callers that depend on chronological order.
	return found, nil
}

// IsModified reports whether the file content differs from a previously
// recorded fingerprint. With fingerprinting disabled it is always false; a
// missing known fingerprint always counts as modified.
func (s *Scanner) IsModified(path, known string) (bool, error) {
	if !s.fingerprint {
		return false, nil
	}
	if known == "" {
		return true, nil
	}
	fresh, err := Fingerprint(path)
	if err != nil {
		return false, err
	}
	return fresh != known, nil
}

func (s *Scanner) matchesPattern(name string) bool {
	for _, pattern := range s.patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
