package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"taskmill/internal/config"
	"taskmill/internal/logging"
)

// CommandExecutor delegates execution to an external command. The spec file
// path is appended as the final argument; stdout becomes the task output.
// The executor may report usage metadata by writing JSON to the file named
// in TASKMILL_USAGE_FILE.
type CommandExecutor struct {
	command string
	args    []string
	workdir string
	logger  *logging.Logger
}

func NewCommandExecutor(cfg config.ExecutorConfig, logger *logging.Logger) *CommandExecutor {
	return &CommandExecutor{
		command: cfg.Command,
		args:    cfg.Args,
		workdir: cfg.Workdir,
		logger:  logger.WithComponent("executor"),
	}
}

func (e *CommandExecutor) Execute(ctx context.Context, req Request) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	usageFile, err := os.CreateTemp("", "taskmill-usage-*.json")
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("create usage file: %v", err)}
	}
	usagePath := usageFile.Name()
	_ = usageFile.Close()
	defer func() { _ = os.Remove(usagePath) }()

	args := append(append([]string(nil), e.args...), req.SpecPath)
	cmd := exec.CommandContext(ctx, e.command, args...)
	if e.workdir != "" {
		cmd.Dir = e.workdir
	} else if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	cmd.Env = append(os.Environ(),
		"TASKMILL_TASK_ID="+req.TaskID,
		"TASKMILL_SOURCE_ID="+req.SourceID,
		"TASKMILL_ATTEMPT="+strconv.Itoa(req.Attempt),
		"TASKMILL_USAGE_FILE="+usagePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Infof("execute_start task=%s source=%s attempt=%d command=%s",
		req.TaskID, req.SourceID, req.Attempt, filepath.Base(e.command))

	runErr := cmd.Run()

	result := Result{
		Output: stdout.String(),
		Usage:  readUsage(usagePath),
	}

	if runErr != nil {
		result.Success = false
		result.Error = executionError(runErr, stderr.String())
		e.logger.Warnf("execute_failed task=%s attempt=%d error=%s",
			req.TaskID, req.Attempt, result.Error)
		return result
	}

	result.Success = true
	e.logger.Infof("execute_done task=%s attempt=%d", req.TaskID, req.Attempt)
	return result
}

func executionError(runErr error, stderr string) string {
	msg := runErr.Error()
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		msg = msg + ": " + trimmed
	}
	return msg
}

// readUsage parses the optional usage report. Anything unreadable is simply
// dropped; usage is advisory metadata.
func readUsage(path string) *Usage {
	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var usage Usage
	if err := json.Unmarshal(data, &usage); err != nil {
		return nil
	}
	return &usage
}
