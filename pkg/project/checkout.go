package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/stage"
)

// trackedManifestName is the control-dir file recording which workspace paths
// (root-relative, as the records spell them) are owned by the object cache.
// Checkout compares it against the current stage set to sweep files whose
// declaring stage was removed since the last run.
const trackedManifestName = "tracked"

func (p *Project) trackedManifestPath() string {
	return filepath.Join(p.root, ControlDirName, trackedManifestName)
}

// readTracked loads the tracked-path manifest. A missing manifest means
// nothing has been tracked yet and yields an empty set.
func (p *Project) readTracked() (map[string]struct{}, error) {
	data, err := os.ReadFile(p.trackedManifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("failed to read tracked manifest: %w", err)
	}

	tracked := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tracked[line] = struct{}{}
	}
	return tracked, nil
}

// writeTracked persists the tracked-path manifest, sorted for stable content.
func (p *Project) writeTracked(paths map[string]struct{}) error {
	lines := make([]string, 0, len(paths))
	for path := range paths {
		lines = append(lines, path)
	}
	sort.Strings(lines)

	var data string
	if len(lines) > 0 {
		data = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(p.trackedManifestPath(), []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write tracked manifest: %w", err)
	}
	return nil
}

// declaredOutputs collects every output path the given stages declare,
// cache-eligible or not.
func declaredOutputs(stages []*stage.Stage) map[string]struct{} {
	outputs := make(map[string]struct{})
	for _, s := range stages {
		for _, out := range s.Outs {
			outputs[out.Path] = struct{}{}
		}
	}
	return outputs
}

// sweepUntracked removes workspace files that were tracked at the last
// manifest write but are no longer declared by any current stage.
//
// Only previously tracked paths are candidates: user sources and other
// untracked files in the workspace are never touched. Removed paths also
// lose their state entry so a later file at the same path is re-hashed.
func (p *Project) sweepUntracked(ctx context.Context, current map[string]struct{}) error {
	prev, err := p.readTracked()
	if err != nil {
		return err
	}

	for path := range prev {
		if _, still := current[path]; still {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		abs := p.abs(path)
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		if err := p.sums.Invalidate(ctx, abs); err != nil {
			return err
		}
		logger.Info("checkout: removed %s (no stage declares it anymore)", path)
	}

	return nil
}

// Checkout materializes committed outputs into the workspace as read-only
// cache links, and removes previously tracked files no current stage
// declares, keeping the workspace consistent with the current stage set.
//
// A non-empty target restricts materialization to that stage (by name or
// output path) and its ancestors; the consistency sweep always runs against
// the full stage set. Outputs that were never committed, or are excluded
// from the cache, are skipped. Per-file failures (object missing from cache,
// permission problems) are reported in the results and do not abort the rest
// of the checkout.
func (p *Project) Checkout(ctx context.Context, target string) ([]cache.CheckoutResult, error) {
	g, err := p.Graph(ctx)
	if err != nil {
		return nil, err
	}

	current := declaredOutputs(g.Stages())
	if err := p.sweepUntracked(ctx, current); err != nil {
		return nil, err
	}

	stages := g.Stages()
	if target != "" {
		stages, err = g.Subgraph(target)
		if err != nil {
			return nil, err
		}
	}

	var specs []cache.OutputSpec
	for _, s := range stages {
		for _, out := range s.Outs {
			if !out.Cached() || out.Checksum.IsZero() {
				continue
			}
			specs = append(specs, cache.OutputSpec{
				Path:     p.abs(out.Path),
				Checksum: out.Checksum,
			})
		}
	}

	results, err := p.cache.Checkout(ctx, specs)
	if err != nil {
		return results, err
	}

	if err := p.writeTracked(current); err != nil {
		return results, err
	}
	return results, nil
}
