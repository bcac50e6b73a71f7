package project

import (
	"context"

	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/sync"
)

// TransferOptions selects the remote, scope and parallelism of a push,
// pull or fetch.
type TransferOptions struct {
	// Remote names the configured remote; empty uses the default.
	Remote string

	// Target restricts the object set to one stage (by name or output
	// path) and its ancestors. Empty covers the whole project.
	Target string

	// Jobs bounds transfer parallelism; zero uses the configured default.
	Jobs int
}

// Push uploads the project's referenced objects the remote is missing.
func (p *Project) Push(ctx context.Context, opts TransferOptions) (*sync.Report, error) {
	wanted, err := p.WantedObjects(ctx, opts.Target)
	if err != nil {
		return nil, err
	}

	syncer, err := p.Syncer(ctx, opts.Remote, opts.Jobs)
	if err != nil {
		return nil, err
	}

	return syncer.Push(ctx, wanted)
}

// Fetch downloads missing referenced objects into the local cache without
// touching the workspace.
func (p *Project) Fetch(ctx context.Context, opts TransferOptions) (*sync.Report, error) {
	wanted, err := p.WantedObjects(ctx, opts.Target)
	if err != nil {
		return nil, err
	}

	syncer, err := p.Syncer(ctx, opts.Remote, opts.Jobs)
	if err != nil {
		return nil, err
	}

	return syncer.Pull(ctx, wanted)
}

// Pull is fetch followed by checkout: missing objects are downloaded into
// the cache and then materialized into the workspace.
func (p *Project) Pull(ctx context.Context, opts TransferOptions) (*sync.Report, []cache.CheckoutResult, error) {
	report, err := p.Fetch(ctx, opts)
	if err != nil {
		return report, nil, err
	}

	checkouts, err := p.Checkout(ctx, opts.Target)
	if err != nil {
		return report, checkouts, err
	}

	return report, checkouts, nil
}
