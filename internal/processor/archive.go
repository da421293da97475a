package processor

import (
	"fmt"
	"os"
	"path/filepath"
)

// archiveSpec moves a completed task's specification file into the source's
// archive directory. A failed move is logged but never fails the task; the
// state record is the authority, not the file location.
func (p *Processor) archiveSpec(c claim) {
	dest := filepath.Join(c.source.ArchiveDir(), filepath.Base(c.specPath))
	if err := moveFile(c.specPath, dest); err != nil {
		p.logger.Warnf("archive_failed task=%s error=%v", c.taskID, err)
		return
	}
	p.logger.Infof("task_archived task=%s dest=%s", c.taskID, dest)
}

// moveToFailed moves an exhausted task's specification file into the failed
// directory and drops an error note next to it.
func (p *Processor) moveToFailed(c claim, errMsg string) {
	name := filepath.Base(c.specPath)
	dest := filepath.Join(c.source.FailedDir(), name)
	if err := moveFile(c.specPath, dest); err != nil {
		p.logger.Warnf("move_to_failed task=%s error=%v", c.taskID, err)
		return
	}

	note := dest + ".error.txt"
	body := fmt.Sprintf("task: %s\nattempt: %d\nerror: %s\n", c.taskID, c.attempt, errMsg)
	if err := os.WriteFile(note, []byte(body), 0o644); err != nil {
		p.logger.Warnf("write_error_note task=%s error=%v", c.taskID, err)
	}
	p.logger.Infof("task_moved_to_failed task=%s dest=%s", c.taskID, dest)
}

// moveFile renames src to dest, creating the destination directory first.
// An existing file at dest is replaced.
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dest)
}
