package project

import (
	"context"
	"fmt"

	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/checksum"
)

// GCPolicy selects which references protect a cache object from sweeping.
type GCPolicy string

const (
	// GCPolicyWorkspace keeps objects referenced by the stage records
	// currently present in the project tree.
	GCPolicyWorkspace GCPolicy = "workspace"

	// GCPolicyAll keeps objects referenced by every record reachable in the
	// project tree. Today this resolves to the same record scan as
	// workspace; the policy exists so reference sources beyond the working
	// tree (version-control history) can widen the mark set without
	// changing the call surface.
	GCPolicyAll GCPolicy = "all"
)

// GCOptions controls one garbage collection run.
type GCOptions struct {
	// Policy selects the mark set (default GCPolicyWorkspace).
	Policy GCPolicy

	// DryRun reports what would be swept without deleting anything.
	DryRun bool

	// Jobs bounds deletion parallelism; zero uses the configured default.
	Jobs int
}

// GC removes cache objects no current reference protects.
//
// Mark-and-sweep over the local cache only: remotes are never touched, and
// a swept object that is still on a remote can be pulled back. Per-object
// deletion failures are collected in the stats and do not abort the sweep.
func (p *Project) GC(ctx context.Context, opts GCOptions) (*cache.GCStats, error) {
	policy := opts.Policy
	if policy == "" {
		policy = GCPolicyWorkspace
	}

	marked, err := p.markSet(ctx, policy)
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = p.cfg.Repro.Jobs
	}

	return p.cache.GC(ctx, marked, cache.GCOptions{
		DryRun: opts.DryRun,
		Jobs:   jobs,
	})
}

// markSet computes the protected object set for the policy: the union of
// every output and dependency checksum recorded by the reachable stage
// records.
//
// Dependency checksums matter on their own: when a dependency's producing
// stage has been removed, the consumer's record is the only reference left
// to that object, and it must still protect it from the sweep. Marked
// checksums with no cache object (plain source files) are harmless.
func (p *Project) markSet(ctx context.Context, policy GCPolicy) (map[checksum.Checksum]struct{}, error) {
	switch policy {
	case GCPolicyWorkspace, GCPolicyAll:
	default:
		return nil, fmt.Errorf("unknown gc policy: %q", policy)
	}

	stages, err := p.LoadStages(ctx)
	if err != nil {
		return nil, err
	}

	marked := make(map[checksum.Checksum]struct{})
	for _, s := range stages {
		for _, sum := range s.OutputChecksums() {
			marked[sum] = struct{}{}
		}
		for _, dep := range s.Deps {
			if !dep.Checksum.IsZero() {
				marked[dep.Checksum] = struct{}{}
			}
		}
	}
	return marked, nil
}
