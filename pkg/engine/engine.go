// Package engine implements the incremental reproduction engine: it walks
// the dependency graph in topological order, decides staleness from
// checksum state alone, re-executes stale stages, and commits fresh outputs
// to the object cache.
//
// Staleness decisions never re-hash unchanged large files (that is the
// checksum store's memoization contract), so evaluating an up-to-date
// multi-gigabyte pipeline is metadata-only work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/graph"
	"github.com/marmos91/dittotrack/pkg/stage"
)

// Runner executes one stage command. Injectable so tests can count and fake
// executions; the default runs through the shell.
type Runner interface {
	// Run executes command in dir, blocking until it exits.
	Run(ctx context.Context, command, dir string) error
}

// ShellRunner runs stage commands through "sh -c", inheriting the parent's
// stdout/stderr so stage output is visible to the user.
type ShellRunner struct{}

// Run executes the command and maps a non-zero exit to an *exec.ExitError.
func (ShellRunner) Run(ctx context.Context, command, dir string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Engine decides staleness and re-executes stages.
type Engine struct {
	cache  *cache.Cache
	sums   *checksum.Store
	root   string
	runner Runner
}

// New creates an engine for the project rooted at root.
//
// Parameters:
//   - objects: Object cache stages commit outputs to
//   - sums: Checksum store used for staleness evaluation
//   - root: Project root; all stage paths are resolved against it
func New(objects *cache.Cache, sums *checksum.Store, root string) *Engine {
	return &Engine{
		cache:  objects,
		sums:   sums,
		root:   root,
		runner: ShellRunner{},
	}
}

// WithRunner replaces the command runner. Used by tests.
func (e *Engine) WithRunner(r Runner) *Engine {
	e.runner = r
	return e
}

// Options controls one reproduction run.
type Options struct {
	// Target restricts the run to one stage (by name or output path) and
	// its ancestors. Empty reproduces the whole pipeline.
	Target string

	// Force re-executes stages even when they evaluate up to date.
	// Locked stages are still skipped.
	Force bool

	// DryRun evaluates and reports without executing or committing.
	DryRun bool
}

// Result reports the terminal status of one stage in a run.
type Result struct {
	Stage  string
	Status Status
	Err    error
}

// Repro walks the graph and brings the targeted stages up to date.
//
// Stages are visited in producer-before-consumer order. A stage whose
// command fails terminates the traversal: downstream stages are not
// attempted, while stages already committed in this run remain committed
// (reproduction is resumable, not transactional).
//
// Re-running an already up-to-date pipeline executes zero commands and
// mutates nothing; idempotence is a hard invariant.
//
// Parameters:
//   - ctx: Context for cancellation (stage commands are killed on cancel)
//   - g: Validated dependency graph
//   - opts: Target, force and dry-run flags
//
// Returns:
//   - []Result: Terminal status per visited stage, in traversal order
//   - error: The first fatal error (command failure, IO error) or context
//     cancellation; nil when every visited stage reached a success state
func (e *Engine) Repro(ctx context.Context, g *graph.Graph, opts Options) ([]Result, error) {
	// ========================================================================
	// Step 1: Select the traversal
	// ========================================================================

	var order []*stage.Stage
	if opts.Target != "" {
		sub, err := g.Subgraph(opts.Target)
		if err != nil {
			return nil, err
		}
		order = sub
	} else {
		order = g.TopoOrder()
	}

	// ========================================================================
	// Step 2: Evaluate and (re-)execute in topological order
	// ========================================================================

	results := make([]Result, 0, len(order))

	// wouldRun tracks stages that ran (or, under dry-run, would run) in this
	// traversal. Under dry-run nothing changes on disk, so a consumer of a
	// would-run producer must be marked stale explicitly.
	wouldRun := make(map[string]bool, len(order))

	for _, s := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		parentWouldRun := false
		if opts.DryRun {
			for _, parent := range g.Parents(s.Name) {
				if wouldRun[parent.Name] {
					parentWouldRun = true
					break
				}
			}
		}

		res, err := e.reproduceStage(ctx, s, opts, parentWouldRun)
		results = append(results, res)
		if err != nil {
			// Downstream stages are not attempted.
			return results, err
		}
		if res.Status == StatusCommitted || (opts.DryRun && res.Status == StatusStale) {
			wouldRun[s.Name] = true
		}
	}

	return results, nil
}

// reproduceStage drives one stage through the state machine to a terminal
// status.
func (e *Engine) reproduceStage(ctx context.Context, s *stage.Stage, opts Options, parentWouldRun bool) (Result, error) {
	status, evalErr := e.evaluate(ctx, s, opts.Force || parentWouldRun)
	if evalErr != nil {
		return Result{Stage: s.Name, Status: StatusFailed, Err: evalErr}, evalErr
	}

	switch status {
	case StatusUpToDate:
		logger.Debug("repro: stage %s is up to date", s.Name)
		return Result{Stage: s.Name, Status: StatusUpToDate}, nil

	case StatusSkipped:
		logger.Warn("repro: stage %s is stale but locked, skipping", s.Name)
		return Result{Stage: s.Name, Status: StatusSkipped}, nil
	}

	// Stale from here on.
	if opts.DryRun {
		logger.Info("repro: would run stage %s: %s", s.Name, s.Command)
		return Result{Stage: s.Name, Status: StatusStale}, nil
	}

	logger.Info("repro: running stage %s: %s", s.Name, s.Command)

	if err := e.execute(ctx, s); err != nil {
		return Result{Stage: s.Name, Status: StatusFailed, Err: err}, err
	}

	if err := e.commit(ctx, s); err != nil {
		return Result{Stage: s.Name, Status: StatusFailed, Err: err}, err
	}

	return Result{Stage: s.Name, Status: StatusCommitted}, nil
}

// evaluate decides whether the stage is up to date, stale, or skipped.
//
// A stage is up to date when every dependency checksum matches the record,
// every cache-eligible output is present in the cache under its recorded
// checksum, and force was not requested.
func (e *Engine) evaluate(ctx context.Context, s *stage.Stage, force bool) (Status, error) {
	stale := force

	if !stale {
		for _, dep := range s.Deps {
			current, err := e.sums.Checksum(ctx, e.abs(dep.Path))
			if err != nil {
				// A missing or unreadable dependency with no producer is not
				// staleness, it is a hard error: the command cannot run.
				return StatusFailed, fmt.Errorf("stage %s: dependency %s: %w", s.Name, dep.Path, err)
			}
			if dep.Checksum.IsZero() || current != dep.Checksum {
				logger.Debug("repro: stage %s stale: dependency %s changed", s.Name, dep.Path)
				stale = true
				break
			}
		}
	}

	if !stale {
		for _, out := range s.Outs {
			if out.Checksum.IsZero() {
				stale = true
				break
			}
			if out.Cached() && !e.cache.HasObject(out.Checksum) {
				logger.Debug("repro: stage %s stale: output %s missing from cache", s.Name, out.Path)
				stale = true
				break
			}
			if !out.Cached() {
				current, err := e.sums.Checksum(ctx, e.abs(out.Path))
				if err != nil || current != out.Checksum {
					stale = true
					break
				}
			}
		}
	}

	if !stale {
		return StatusUpToDate, nil
	}
	if s.Locked {
		return StatusSkipped, nil
	}
	return StatusStale, nil
}

// execute runs the stage command in its working directory.
func (e *Engine) execute(ctx context.Context, s *stage.Stage) error {
	dir := e.root
	if s.WorkDir != "" {
		dir = filepath.Join(e.root, s.WorkDir)
	}

	if err := e.runner.Run(ctx, s.Command, dir); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &CommandError{
			Stage:    s.Name,
			Command:  s.Command,
			ExitCode: exitCode,
			Err:      err,
		}
	}

	return nil
}

// commit stores the stage's fresh outputs in the cache and persists the
// updated record.
//
// Ordering: outputs are committed to the cache first, the record is
// persisted last. A crash in between leaves the record with the old
// checksums, so the next run re-evaluates and safely re-verifies instead of
// trusting half-updated state.
func (e *Engine) commit(ctx context.Context, s *stage.Stage) error {
	// ========================================================================
	// Step 1: Refresh dependency checksums as of execution time
	// ========================================================================

	for i := range s.Deps {
		sum, err := e.sums.Checksum(ctx, e.abs(s.Deps[i].Path))
		if err != nil {
			return fmt.Errorf("stage %s: dependency %s: %w", s.Name, s.Deps[i].Path, err)
		}
		s.Deps[i].Checksum = sum
	}

	// ========================================================================
	// Step 2: Commit outputs to the object cache
	// ========================================================================

	for i := range s.Outs {
		out := &s.Outs[i]

		if out.Cached() {
			sum, err := e.cache.Add(ctx, e.abs(out.Path))
			if err != nil {
				return fmt.Errorf("stage %s: output %s: %w", s.Name, out.Path, err)
			}
			out.Checksum = sum
			continue
		}

		sum, err := e.sums.Checksum(ctx, e.abs(out.Path))
		if err != nil {
			return fmt.Errorf("stage %s: output %s: %w", s.Name, out.Path, err)
		}
		out.Checksum = sum
	}

	// ========================================================================
	// Step 3: Persist the record (last, see ordering note above)
	// ========================================================================

	if err := s.Save(""); err != nil {
		return fmt.Errorf("stage %s: failed to persist record: %w", s.Name, err)
	}

	return nil
}

// abs resolves a stage-declared path against the project root.
func (e *Engine) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.root, path)
}
