package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/graph"
	"github.com/marmos91/dittotrack/pkg/stage"
)

// LoadStages scans the project tree for stage records and loads them.
//
// The control directory and hidden directories are skipped; records may
// otherwise live anywhere in the tree, so pipelines can be organized per
// subdirectory.
func (p *Project) LoadStages(ctx context.Context) ([]*stage.Stage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stages []*stage.Stage

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != p.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), stage.RecordSuffix) {
			return nil
		}

		s, err := stage.Load(path)
		if err != nil {
			return fmt.Errorf("record %s: %w", path, err)
		}
		stages = append(stages, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stages, nil
}

// Graph loads all stage records and builds the validated dependency graph.
func (p *Project) Graph(ctx context.Context) (*graph.Graph, error) {
	stages, err := p.LoadStages(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Build(stages)
}

// AddStage validates and persists a new stage record at the project root.
//
// The declared paths are kept project-root-relative in the record so the
// record is portable across clones. Adding a stage whose record already
// exists is an error; edit or remove the existing record instead.
func (p *Project) AddStage(ctx context.Context, s *stage.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.Validate(); err != nil {
		return err
	}

	recordPath := filepath.Join(p.root, s.Name+stage.RecordSuffix)
	if _, err := os.Stat(recordPath); err == nil {
		return fmt.Errorf("stage %s: record %s already exists", s.Name, recordPath)
	}

	// Building the graph with the new stage catches duplicate outputs and
	// cycles before anything is written.
	existing, err := p.LoadStages(ctx)
	if err != nil {
		return err
	}
	if _, err := graph.Build(append(existing, s)); err != nil {
		return err
	}

	if err := s.Save(recordPath); err != nil {
		return err
	}

	logger.Info("added stage %s (%s)", s.Name, recordPath)
	return nil
}

// findStage loads the record for the named stage.
func (p *Project) findStage(ctx context.Context, name string) (*stage.Stage, error) {
	stages, err := p.LoadStages(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range stages {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("stage %s: %w", name, stage.ErrRecordNotFound)
}

// RemoveStage deletes the named stage's record and, when deleteOutputs is
// set, its workspace outputs. Cache objects are untouched; gc owns those.
func (p *Project) RemoveStage(ctx context.Context, name string, deleteOutputs bool) error {
	s, err := p.findStage(ctx, name)
	if err != nil {
		return err
	}

	if deleteOutputs {
		for _, out := range s.Outs {
			if err := os.Remove(p.abs(out.Path)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("stage %s: failed to remove output %s: %w", name, out.Path, err)
			}
		}
	}

	if err := s.Remove(); err != nil {
		return err
	}

	logger.Info("removed stage %s", name)
	return nil
}

// SetLocked toggles the locked flag on the named stage and persists the
// record. Locked stages are never re-executed; a stale locked stage is
// skipped with a warning.
func (p *Project) SetLocked(ctx context.Context, name string, locked bool) error {
	s, err := p.findStage(ctx, name)
	if err != nil {
		return err
	}

	if s.Locked == locked {
		return nil
	}

	s.Locked = locked
	if err := s.Save(""); err != nil {
		return err
	}

	if locked {
		logger.Info("locked stage %s", name)
	} else {
		logger.Info("unlocked stage %s", name)
	}
	return nil
}

// WantedObjects returns the cache-eligible output checksums the project
// references: the object set push, pull, fetch and gc operate on.
//
// A non-empty target restricts the set to that stage (by name or output
// path) and its ancestors.
func (p *Project) WantedObjects(ctx context.Context, target string) ([]checksum.Checksum, error) {
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

	var sums []checksum.Checksum
	for _, s := range stages {
		sums = append(sums, s.OutputChecksums()...)
	}
	return sums, nil
}
