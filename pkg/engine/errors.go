package engine

import (
	"errors"
	"fmt"
)

// ErrCommandFailed matches any *CommandError under errors.Is.
var ErrCommandFailed = errors.New("stage command failed")

// CommandError reports a stage command that exited non-zero (or could not be
// started). It aborts the remaining traversal; already-committed upstream
// stages stay committed. Reproduction is resumable, not transactional.
type CommandError struct {
	// Stage is the name of the failing stage.
	Stage string

	// Command is the shell command that failed.
	Command string

	// ExitCode is the command's exit code, or -1 if it never ran.
	ExitCode int

	// Err is the underlying exec error.
	Err error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("stage %s: command %q failed with exit code %d", e.Stage, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("stage %s: command %q failed: %v", e.Stage, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}
