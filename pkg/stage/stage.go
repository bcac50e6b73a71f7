// Package stage defines the Stage model: one declared unit of reproducible
// work (a command with declared dependencies and outputs) and its on-disk
// record.
//
// Records are small YAML files committed to version control, one file per
// stage. Keeping each stage in its own record makes the files diff-friendly
// and mergeable: two branches editing different stages never touch the same
// file.
package stage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

// RecordSuffix is the file name suffix of stage records.
const RecordSuffix = ".stage"

// Dependency is one declared input: a workspace path and the checksum it had
// when the stage was last committed. A zero checksum means the stage has
// never run.
type Dependency struct {
	Path     string            `yaml:"path"`
	Checksum checksum.Checksum `yaml:"checksum,omitempty"`
}

// Output is one declared product of the stage's command.
type Output struct {
	Path     string            `yaml:"path"`
	Checksum checksum.Checksum `yaml:"checksum,omitempty"`

	// NoCache excludes the output from the object cache (and therefore from
	// push/pull). Used for small derived files that are cheap to regenerate
	// or are committed to version control directly.
	NoCache bool `yaml:"no_cache,omitempty"`
}

// Cached reports whether the output participates in the object cache.
func (o Output) Cached() bool {
	return !o.NoCache
}

// Stage is the in-memory representation of one declared step.
//
// Mutation rules: created by "add", loaded from its record, mutated only by
// the reproduction engine when outputs are regenerated, deleted by explicit
// removal. The Name is derived from the record file name and is not part of
// the serialized record.
type Stage struct {
	// Name identifies the stage (record file base name).
	Name string `yaml:"-"`

	// Command is the shell command that produces Outs from Deps.
	Command string `yaml:"cmd"`

	// WorkDir is the directory the command runs in, relative to the project
	// root. Empty means the project root itself.
	WorkDir string `yaml:"wdir,omitempty"`

	// Deps are the declared inputs, in declaration order.
	Deps []Dependency `yaml:"deps,omitempty"`

	// Outs are the declared outputs.
	Outs []Output `yaml:"outs,omitempty"`

	// Locked stages are never re-executed by the reproduction engine; a
	// stale locked stage is skipped with a warning.
	Locked bool `yaml:"locked,omitempty"`

	// path is where the record lives on disk; empty for unsaved stages.
	path string
}

// NameFromPath derives the stage name from a record path.
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), RecordSuffix)
}

// Path returns the record path the stage was loaded from or saved to.
func (s *Stage) Path() string {
	return s.path
}

// OutputChecksums returns the checksums of all cache-eligible outputs,
// skipping outputs that have never been committed.
func (s *Stage) OutputChecksums() []checksum.Checksum {
	sums := make([]checksum.Checksum, 0, len(s.Outs))
	for _, out := range s.Outs {
		if out.Cached() && !out.Checksum.IsZero() {
			sums = append(sums, out.Checksum)
		}
	}
	return sums
}

// FindOutput returns the output declared for path, if any.
func (s *Stage) FindOutput(path string) (Output, bool) {
	for _, out := range s.Outs {
		if out.Path == path {
			return out, true
		}
	}
	return Output{}, false
}

// Validate checks the structural invariants of a stage declaration.
func (s *Stage) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stage has no name")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("stage %s: command is required", s.Name)
	}
	if len(s.Outs) == 0 {
		return fmt.Errorf("stage %s: at least one output is required", s.Name)
	}

	seen := make(map[string]struct{}, len(s.Outs))
	for _, out := range s.Outs {
		if out.Path == "" {
			return fmt.Errorf("stage %s: output with empty path", s.Name)
		}
		if _, dup := seen[out.Path]; dup {
			return fmt.Errorf("stage %s: output %s declared twice", s.Name, out.Path)
		}
		seen[out.Path] = struct{}{}
	}

	for _, dep := range s.Deps {
		if dep.Path == "" {
			return fmt.Errorf("stage %s: dependency with empty path", s.Name)
		}
		if _, isOut := seen[dep.Path]; isOut {
			return fmt.Errorf("stage %s: path %s is both dependency and output", s.Name, dep.Path)
		}
	}

	return nil
}
