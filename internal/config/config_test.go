package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
project_workspace: /srv/work
sources:
  - id: main
    path: /srv/work/tasks
executor:
  command: agent-exec
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Settings.WatchDebounceMs)
	assert.Equal(t, []string{"*.md"}, cfg.Settings.WatchPatterns)
	assert.Equal(t, 30, cfg.Settings.ScanIntervalSec)
	assert.Equal(t, 1, cfg.Settings.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Settings.WatchIsEnabled())
	assert.True(t, cfg.Settings.FingerprintEnabled())
	assert.Equal(t, 2*time.Second, cfg.Settings.LockTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.Settings.LockPollInterval())
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
project_workspace: /srv/work
sources:
  - id: main
    path: /srv/work/tasks
  - id: aux
    path: /srv/work/aux
    description: secondary
settings:
  watch_enabled: false
  enable_fingerprint: false
  watch_debounce_ms: 250
  max_attempts: 3
  batch_limit: 10
executor:
  command: agent-exec
  args: ["--model", "standard"]
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Settings.WatchIsEnabled())
	assert.False(t, cfg.Settings.FingerprintEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Settings.DebounceWindow())
	assert.Equal(t, 3, cfg.Settings.MaxAttempts)
	assert.Equal(t, 10, cfg.Settings.BatchLimit)
	assert.Equal(t, []string{"--model", "standard"}, cfg.Executor.Args)
	require.NotNil(t, cfg.Source("aux"))
	assert.Equal(t, "secondary", cfg.Source("aux").Description)
	assert.Nil(t, cfg.Source("missing"))
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing workspace", `
sources: [{id: main, path: /srv/tasks}]
executor: {command: agent-exec}
`},
		{"no sources", `
project_workspace: /srv/work
executor: {command: agent-exec}
`},
		{"source without id", `
project_workspace: /srv/work
sources: [{path: /srv/tasks}]
executor: {command: agent-exec}
`},
		{"source without path", `
project_workspace: /srv/work
sources: [{id: main}]
executor: {command: agent-exec}
`},
		{"duplicate source ids", `
project_workspace: /srv/work
sources: [{id: main, path: /a}, {id: main, path: /b}]
executor: {command: agent-exec}
`},
		{"missing executor command", `
project_workspace: /srv/work
sources: [{id: main, path: /srv/tasks}]
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{ProjectWorkspace: "/srv/work"}
	assert.Equal(t, "/srv/work/state/queue.json", cfg.StatePath())
	assert.Equal(t, "/srv/work/locks/queue.lock", cfg.StateLockPath())
	assert.Equal(t, "/srv/work/locks/daemon.lock", cfg.DaemonLockPath())
	assert.Equal(t, "/srv/work/logs", cfg.LogDir())

	src := SourceConfig{ID: "main", Path: "/srv/work/tasks"}
	assert.Equal(t, "/srv/work/tasks", src.PendingDir())
	assert.Equal(t, "/srv/work/tasks/archive", src.ArchiveDir())
	assert.Equal(t, "/srv/work/tasks/failed", src.FailedDir())
	assert.Equal(t, "/srv/work/tasks/results", src.ResultsDir())
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	require.NoError(t, WriteDefault(path, dir))

	// The generated file must load with a valid schema.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectWorkspace)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "main", cfg.Sources[0].ID)

	// Never overwrite an existing file.
	require.Error(t, WriteDefault(path, dir))
}
