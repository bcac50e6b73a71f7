package project

import (
	"context"
	"errors"

	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/state"
)

// VerifyResult reports the integrity check of one committed output object.
type VerifyResult struct {
	// Stage is the stage declaring the output.
	Stage string

	// Path is the declared workspace path of the output.
	Path string

	// Object is the checksum the record committed for the output.
	Object checksum.Checksum

	// Err is nil when the stored bytes agree with every recorded reference;
	// a *cache.CorruptionError names what diverged.
	Err error
}

// Verify re-hashes the committed cache objects the project references and
// cross-checks each against its key, the state entry of its workspace link,
// and the stage record.
//
// A non-empty target restricts the check to that stage (by name or output
// path) and its ancestors; empty verifies everything.
//
// Verification never repairs anything: a divergence is reported and left in
// place so the cause can be inspected; repair is an explicit re-run or
// re-pull. Per-object failures do not stop the remaining checks.
func (p *Project) Verify(ctx context.Context, target string) ([]VerifyResult, error) {
	g, err := p.Graph(ctx)
	if err != nil {
		return nil, err
	}

	stages := g.Stages()
	if target != "" {
		stages, err = g.Subgraph(target)
		if err != nil {
			return nil, err
		}
	}

	var results []VerifyResult
	for _, s := range stages {
		for _, out := range s.Outs {
			if !out.Cached() || out.Checksum.IsZero() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return results, err
			}

			ref := cache.Reference{Record: out.Checksum}

			// The state entry, when one exists, is the third witness.
			entry, err := p.states.Get(ctx, p.abs(out.Path))
			if err == nil {
				ref.State = checksum.Checksum(entry.Checksum)
			} else if !errors.Is(err, state.ErrEntryNotFound) {
				results = append(results, VerifyResult{
					Stage:  s.Name,
					Path:   out.Path,
					Object: out.Checksum,
					Err:    err,
				})
				continue
			}

			results = append(results, VerifyResult{
				Stage:  s.Name,
				Path:   out.Path,
				Object: out.Checksum,
				Err:    p.cache.Verify(ctx, out.Checksum, ref),
			})
		}
	}

	return results, nil
}
