package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrRecordNotFound indicates the stage record file does not exist.
var ErrRecordNotFound = errors.New("stage record not found")

// Load reads and validates the stage record at path.
//
// The stage name is derived from the file name, so renaming a record renames
// the stage without touching its content.
//
// Parameters:
//   - path: Record file path (must end in RecordSuffix)
//
// Returns:
//   - *Stage: Parsed stage
//   - error: ErrRecordNotFound (wrapped) if absent, parse or validation errors
func Load(path string) (*Stage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("record %s: %w", path, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to read stage record %s: %w", path, err)
	}

	var stage Stage
	if err := yaml.Unmarshal(data, &stage); err != nil {
		return nil, fmt.Errorf("failed to parse stage record %s: %w", path, err)
	}

	stage.Name = NameFromPath(path)
	stage.path = path

	if err := stage.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage record %s: %w", path, err)
	}

	return &stage, nil
}

// Save writes the stage record to path (or back to the path it was loaded
// from when path is empty).
//
// The write is temp-and-rename so a crash mid-save never leaves a truncated
// record: the engine's commit protocol relies on the record either being the
// old version or the new one, never half of each.
func (s *Stage) Save(path string) error {
	if path == "" {
		path = s.path
	}
	if path == "" {
		return fmt.Errorf("stage %s: no record path", s.Name)
	}

	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode stage %s: %w", s.Name, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stage-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write stage record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize stage record: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set record permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move stage record into place: %w", err)
	}

	s.path = path
	return nil
}

// Remove deletes the stage record from disk. The workspace outputs are left
// alone; removing them is the caller's explicit choice.
func (s *Stage) Remove() error {
	if s.path == "" {
		return fmt.Errorf("stage %s: no record path", s.Name)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stage record %s: %w", s.path, err)
	}
	return nil
}
