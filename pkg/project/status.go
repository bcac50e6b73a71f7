package project

import (
	"context"

	"github.com/marmos91/dittotrack/pkg/engine"
	"github.com/marmos91/dittotrack/pkg/sync"
)

// PipelineStatus evaluates every targeted stage without executing anything
// and reports its state: up to date, stale, or skipped (locked).
//
// This is exactly a dry-run reproduction, so staleness propagation through
// the graph matches what a real run would do.
func (p *Project) PipelineStatus(ctx context.Context, target string) ([]engine.Result, error) {
	g, err := p.Graph(ctx)
	if err != nil {
		return nil, err
	}

	return p.engine.Repro(ctx, g, engine.Options{
		Target: target,
		DryRun: true,
	})
}

// RemoteStatus computes the object delta between the local cache and the
// named remote for the project's referenced objects, without transferring
// anything.
func (p *Project) RemoteStatus(ctx context.Context, remoteName, target string) (*sync.Status, error) {
	wanted, err := p.WantedObjects(ctx, target)
	if err != nil {
		return nil, err
	}

	syncer, err := p.Syncer(ctx, remoteName, 0)
	if err != nil {
		return nil, err
	}

	return syncer.Compare(ctx, wanted)
}
