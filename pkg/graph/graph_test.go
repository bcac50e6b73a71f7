package graph

import (
	"errors"
	"testing"

	"github.com/marmos91/dittotrack/pkg/stage"
)

// chain builds prepare -> featurize -> train through shared paths.
func chain() []*stage.Stage {
	return []*stage.Stage{
		{
			Name:    "train",
			Command: "python train.py",
			Deps:    []stage.Dependency{{Path: "features.bin"}},
			Outs:    []stage.Output{{Path: "model.pkl"}},
		},
		{
			Name:    "prepare",
			Command: "python prepare.py",
			Deps:    []stage.Dependency{{Path: "raw.csv"}},
			Outs:    []stage.Output{{Path: "clean.csv"}},
		},
		{
			Name:    "featurize",
			Command: "python featurize.py",
			Deps:    []stage.Dependency{{Path: "clean.csv"}},
			Outs:    []stage.Output{{Path: "features.bin"}},
		},
	}
}

func names(stages []*stage.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.Name
	}
	return out
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

func TestTopoOrderProducersFirst(t *testing.T) {
	g, err := Build(chain())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	order := names(g.TopoOrder())
	if len(order) != 3 {
		t.Fatalf("TopoOrder = %v", order)
	}
	if indexOf(order, "prepare") > indexOf(order, "featurize") {
		t.Errorf("prepare after featurize: %v", order)
	}
	if indexOf(order, "featurize") > indexOf(order, "train") {
		t.Errorf("featurize after train: %v", order)
	}
}

func TestParents(t *testing.T) {
	g, err := Build(chain())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	parents := names(g.Parents("train"))
	if len(parents) != 1 || parents[0] != "featurize" {
		t.Errorf("Parents(train) = %v, want [featurize]", parents)
	}
	if len(g.Parents("prepare")) != 0 {
		t.Errorf("Parents(prepare) = %v, want none (external input)", names(g.Parents("prepare")))
	}
}

func TestProducerLookup(t *testing.T) {
	g, err := Build(chain())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s, ok := g.Producer("features.bin")
	if !ok || s.Name != "featurize" {
		t.Errorf("Producer(features.bin) = %v, %v", s, ok)
	}
	if _, ok := g.Producer("raw.csv"); ok {
		t.Error("raw.csv is an external input, should have no producer")
	}
}

func TestSubgraphByName(t *testing.T) {
	g, err := Build(chain())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sub, err := g.Subgraph("featurize")
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}

	got := names(sub)
	if len(got) != 2 || got[0] != "prepare" || got[1] != "featurize" {
		t.Errorf("Subgraph(featurize) = %v, want [prepare featurize]", got)
	}
}

func TestSubgraphByOutputPath(t *testing.T) {
	g, err := Build(chain())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sub, err := g.Subgraph("model.pkl")
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	if len(sub) != 3 || sub[len(sub)-1].Name != "train" {
		t.Errorf("Subgraph(model.pkl) = %v", names(sub))
	}

	if _, err := g.Subgraph("nonexistent"); err == nil {
		t.Error("Subgraph of unknown target should fail")
	}
}

func TestDuplicateOutputFailsBuild(t *testing.T) {
	stages := chain()
	stages = append(stages, &stage.Stage{
		Name:    "rival",
		Command: "true",
		Outs:    []stage.Output{{Path: "model.pkl"}},
	})

	_, err := Build(stages)
	if !errors.Is(err, ErrDuplicateOutput) {
		t.Fatalf("err = %v, want ErrDuplicateOutput", err)
	}

	var dup *DuplicateOutputError
	if !errors.As(err, &dup) {
		t.Fatalf("err %T does not unwrap to *DuplicateOutputError", err)
	}
	if dup.Path != "model.pkl" || len(dup.Stages) != 2 {
		t.Errorf("DuplicateOutputError = %+v", dup)
	}
}

func TestCycleFailsBuildWithFullPath(t *testing.T) {
	stages := []*stage.Stage{
		{
			Name:    "a",
			Command: "true",
			Deps:    []stage.Dependency{{Path: "c.out"}},
			Outs:    []stage.Output{{Path: "a.out"}},
		},
		{
			Name:    "b",
			Command: "true",
			Deps:    []stage.Dependency{{Path: "a.out"}},
			Outs:    []stage.Output{{Path: "b.out"}},
		},
		{
			Name:    "c",
			Command: "true",
			Deps:    []stage.Dependency{{Path: "b.out"}},
			Outs:    []stage.Output{{Path: "c.out"}},
		},
	}

	_, err := Build(stages)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("err = %v, want ErrCycleDetected", err)
	}

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err %T does not unwrap to *CycleError", err)
	}
	// Full path, first stage repeated at the end.
	if len(cycle.Stages) != 4 || cycle.Stages[0] != cycle.Stages[len(cycle.Stages)-1] {
		t.Errorf("cycle path = %v", cycle.Stages)
	}
	seen := make(map[string]bool)
	for _, name := range cycle.Stages {
		seen[name] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !seen[want] {
			t.Errorf("cycle path %v missing stage %s", cycle.Stages, want)
		}
	}
}

func TestDuplicateStageNameFailsBuild(t *testing.T) {
	stages := []*stage.Stage{
		{Name: "dup", Command: "true", Outs: []stage.Output{{Path: "x"}}},
		{Name: "dup", Command: "true", Outs: []stage.Output{{Path: "y"}}},
	}

	if _, err := Build(stages); err == nil {
		t.Fatal("Build with duplicate stage names should fail")
	}
}
