package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Graph Build Errors
// ============================================================================

// Graph-build errors are fatal before any execution starts: a pipeline with
// duplicate outputs or a cycle is malformed and nothing should run.

var (
	// ErrCycleDetected matches any *CycleError under errors.Is.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrDuplicateOutput matches any *DuplicateOutputError under errors.Is.
	ErrDuplicateOutput = errors.New("duplicate output")
)

// CycleError reports a dependency cycle with the full offending path, so the
// user can see exactly which stages form the loop.
type CycleError struct {
	// Stages is the cycle path in dependency order; the first stage is
	// repeated at the end.
	Stages []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Stages, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// DuplicateOutputError reports two stages declaring the same output path.
// Reported at build time, never deferred to reproduction time.
type DuplicateOutputError struct {
	Path   string
	Stages []string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output %s declared by multiple stages: %s",
		e.Path, strings.Join(e.Stages, ", "))
}

func (e *DuplicateOutputError) Is(target error) bool {
	return target == ErrDuplicateOutput
}
