package stage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittotrack/pkg/checksum"
)

func validStage() *Stage {
	return &Stage{
		Name:    "prepare",
		Command: "python prepare.py",
		Deps:    []Dependency{{Path: "data/raw.csv"}},
		Outs:    []Output{{Path: "data/clean.csv"}},
	}
}

func TestValidateAcceptsWellFormedStage(t *testing.T) {
	if err := validStage().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Stage)
	}{
		{"missing name", func(s *Stage) { s.Name = "" }},
		{"blank command", func(s *Stage) { s.Command = "   " }},
		{"no outputs", func(s *Stage) { s.Outs = nil }},
		{"empty output path", func(s *Stage) { s.Outs = append(s.Outs, Output{}) }},
		{"duplicate output", func(s *Stage) { s.Outs = append(s.Outs, Output{Path: "data/clean.csv"}) }},
		{"empty dependency path", func(s *Stage) { s.Deps = append(s.Deps, Dependency{}) }},
		{"dep is also output", func(s *Stage) { s.Deps = append(s.Deps, Dependency{Path: "data/clean.csv"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStage()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Fatal("Validate succeeded, want error")
			}
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prepare"+RecordSuffix)

	s := validStage()
	s.WorkDir = "scripts"
	s.Locked = true
	s.Deps[0].Checksum = checksum.Sum([]byte("dep"))
	s.Outs[0].Checksum = checksum.Sum([]byte("out"))
	s.Outs = append(s.Outs, Output{Path: "data/report.txt", NoCache: true})

	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Name != "prepare" {
		t.Errorf("Name = %q, want prepare (derived from file name)", loaded.Name)
	}
	if loaded.Command != s.Command || loaded.WorkDir != s.WorkDir || !loaded.Locked {
		t.Errorf("loaded stage fields diverged: %+v", loaded)
	}
	if len(loaded.Deps) != 1 || loaded.Deps[0].Checksum != s.Deps[0].Checksum {
		t.Errorf("Deps = %+v", loaded.Deps)
	}
	if len(loaded.Outs) != 2 || loaded.Outs[0].Checksum != s.Outs[0].Checksum || !loaded.Outs[1].NoCache {
		t.Errorf("Outs = %+v", loaded.Outs)
	}
	if loaded.Path() != path {
		t.Errorf("Path = %q, want %q", loaded.Path(), path)
	}
}

func TestSaveBackToLoadedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy"+RecordSuffix)
	s := validStage()
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	loaded.Outs[0].Checksum = checksum.Sum([]byte("new output"))
	if err := loaded.Save(""); err != nil {
		t.Fatalf("Save back: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Outs[0].Checksum != loaded.Outs[0].Checksum {
		t.Error("committed checksum not persisted")
	}
}

func TestLoadMissingRecord(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"+RecordSuffix))
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestNameFromPath(t *testing.T) {
	if got := NameFromPath("/project/train" + RecordSuffix); got != "train" {
		t.Errorf("NameFromPath = %q, want train", got)
	}
}

func TestOutputChecksums(t *testing.T) {
	committed := checksum.Sum([]byte("committed"))
	s := &Stage{
		Name:    "x",
		Command: "true",
		Outs: []Output{
			{Path: "a", Checksum: committed},
			{Path: "b"}, // never committed
			{Path: "c", Checksum: checksum.Sum([]byte("nc")), NoCache: true},
		},
	}

	sums := s.OutputChecksums()
	if len(sums) != 1 || sums[0] != committed {
		t.Fatalf("OutputChecksums = %v, want [%s]", sums, committed)
	}
}

func TestRemoveDeletesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmp"+RecordSuffix)
	s := validStage()
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("record still loadable after Remove: %v", err)
	}
}
