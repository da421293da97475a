package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is what the CLI looks for when --config is not given.
const DefaultFileName = "taskmill.yaml"

const defaultTemplate = `# taskmill configuration
project_workspace: %q

sources:
  - id: main
    path: %q
    description: primary task source

settings:
  watch_enabled: true
  watch_debounce_ms: 500
  watch_patterns: ["*.md"]
  scan_interval_sec: 30
  max_attempts: 1
  enable_fingerprint: true
  lock_timeout_ms: 2000
  lock_poll_ms: 100
  batch_limit: 0

executor:
  # Invoked as: <command> <args...> <spec-file>
  command: agent-exec
  args: []
  workdir: ""

logging:
  level: info
`

// WriteDefault creates a starter config at path. Refuses to overwrite.
func WriteDefault(path, workspace string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if workspace == "" {
		workspace = "."
	}
	content := fmt.Sprintf(defaultTemplate, workspace, filepath.Join(workspace, "tasks"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
