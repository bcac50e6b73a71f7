package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/engine"
	"github.com/marmos91/dittotrack/pkg/stage"
)

// newTestProject initializes a project with an in-memory state store and a
// directory-backed default remote, and opens it.
func newTestProject(t *testing.T) (*Project, string) {
	t.Helper()

	root := t.TempDir()
	remoteDir := t.TempDir()

	if err := Init(context.Background(), root); err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg := fmt.Sprintf(`
logging:
  level: ERROR
state:
  type: memory
remotes:
  origin:
    type: fs
    fs:
      path: %s
default_remote: origin
`, remoteDir)

	cfgPath := filepath.Join(root, ControlDirName, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	p, err := Open(context.Background(), root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	return p, root
}

// addCopyStage declares a stage that copies dep to out and writes its
// dependency file.
func addCopyStage(t *testing.T, p *Project, root, name, dep, out, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(root, dep), []byte(content), 0o644); err != nil {
		t.Fatalf("writing dependency: %v", err)
	}

	err := p.AddStage(context.Background(), &stage.Stage{
		Name:    name,
		Command: fmt.Sprintf("cp %s %s", dep, out),
		Deps:    []stage.Dependency{{Path: dep}},
		Outs:    []stage.Output{{Path: out}},
	})
	if err != nil {
		t.Fatalf("AddStage(%s): %v", name, err)
	}
}

func TestInitAndFindRoot(t *testing.T) {
	root := t.TempDir()

	if err := Init(context.Background(), root); err != nil {
		t.Fatalf("Init: %v", err)
	}

	nested := filepath.Join(root, "data", "raw")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if resolved, _ := filepath.EvalSymlinks(root); found != root && found != resolved {
		t.Errorf("FindRoot = %q, want %q", found, root)
	}

	if err := Init(context.Background(), root); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init = %v, want ErrAlreadyInitialized", err)
	}
}

func TestFindRootOutsideProject(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	if !errors.Is(err, ErrNotAProject) {
		t.Fatalf("FindRoot = %v, want ErrNotAProject", err)
	}
}

func TestReproIsIdempotent(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "payload")

	results, err := p.Repro(context.Background(), engine.Options{})
	if err != nil {
		t.Fatalf("first repro: %v", err)
	}
	if len(results) != 1 || results[0].Status != engine.StatusCommitted {
		t.Fatalf("first repro results = %+v, want one Committed", results)
	}

	results, err = p.Repro(context.Background(), engine.Options{})
	if err != nil {
		t.Fatalf("second repro: %v", err)
	}
	if len(results) != 1 || results[0].Status != engine.StatusUpToDate {
		t.Fatalf("second repro results = %+v, want one UpToDate", results)
	}
}

func TestCheckoutRestoresDeletedOutput(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "restore me")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	outPath := filepath.Join(root, "out.txt")
	if err := os.Remove(outPath); err != nil {
		t.Fatalf("removing output: %v", err)
	}

	results, err := p.Checkout(context.Background(), "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("checkout %s: %v", res.Path, res.Err)
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading restored output: %v", err)
	}
	if string(data) != "restore me" {
		t.Errorf("restored content = %q", data)
	}
}

func TestCheckoutSweepsRemovedStageOutputs(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "obsolete")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	if err := p.RemoveStage(context.Background(), "copy", false); err != nil {
		t.Fatalf("RemoveStage: %v", err)
	}

	// The removed stage's output lingers in the workspace until checkout
	// sweeps it against the current stage set.
	if _, err := p.Checkout(context.Background(), ""); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "out.txt")); !os.IsNotExist(err) {
		t.Errorf("removed stage's output survived checkout: %v", err)
	}

	// User sources were never tracked and must be untouched.
	if _, err := os.Stat(filepath.Join(root, "data.txt")); err != nil {
		t.Errorf("source file missing after checkout: %v", err)
	}
}

func TestVerifyReportsCleanProject(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "verified")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	results, err := p.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d verify results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("verify failed on clean project: %v", results[0].Err)
	}
}

func TestVerifyTargetRestrictsScope(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "prepare", "data.txt", "mid.txt", "chain")

	err := p.AddStage(context.Background(), &stage.Stage{
		Name:    "train",
		Command: "cat mid.txt mid.txt > final.txt",
		Deps:    []stage.Dependency{{Path: "mid.txt"}},
		Outs:    []stage.Output{{Path: "final.txt"}},
	})
	if err != nil {
		t.Fatalf("AddStage(train): %v", err)
	}

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	results, err := p.Verify(context.Background(), "prepare")
	if err != nil {
		t.Fatalf("Verify(prepare): %v", err)
	}
	if len(results) != 1 || results[0].Stage != "prepare" {
		t.Fatalf("targeted verify results = %+v, want prepare only", results)
	}

	results, err = p.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("full verify checked %d objects, want 2", len(results))
	}
}

func TestGCKeepsReferencedObjects(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "keep this object")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	// An orphan: added to the cache but referenced by no record.
	orphanSrc := filepath.Join(root, "orphan.bin")
	if err := os.WriteFile(orphanSrc, []byte("orphan"), 0o644); err != nil {
		t.Fatalf("writing orphan: %v", err)
	}
	orphan, err := p.Cache().Add(context.Background(), orphanSrc)
	if err != nil {
		t.Fatalf("cache.Add: %v", err)
	}

	stats, err := p.GC(context.Background(), GCOptions{})
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if stats.SweptCount != 1 {
		t.Errorf("swept %d objects, want 1", stats.SweptCount)
	}
	if p.Cache().HasObject(orphan) {
		t.Error("orphan object survived gc")
	}

	wanted, err := p.WantedObjects(context.Background(), "")
	if err != nil {
		t.Fatalf("WantedObjects: %v", err)
	}
	for _, sum := range wanted {
		if !p.Cache().HasObject(sum) {
			t.Errorf("referenced object %s swept", sum)
		}
	}
}

func TestGCKeepsDependencyReferencedObjects(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "prepare", "raw.txt", "mid.txt", "shared")

	err := p.AddStage(context.Background(), &stage.Stage{
		Name:    "train",
		Command: "cat mid.txt mid.txt > final.txt",
		Deps:    []stage.Dependency{{Path: "mid.txt"}},
		Outs:    []stage.Output{{Path: "final.txt"}},
	})
	if err != nil {
		t.Fatalf("AddStage(train): %v", err)
	}

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	// Remove the producer. The consumer's record still carries mid.txt's
	// dependency checksum, and that reference alone must protect the object.
	if err := p.RemoveStage(context.Background(), "prepare", false); err != nil {
		t.Fatalf("RemoveStage: %v", err)
	}

	stats, err := p.GC(context.Background(), GCOptions{})
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if stats.SweptCount != 0 {
		t.Errorf("swept %d objects, want 0 (all referenced by the remaining record)", stats.SweptCount)
	}

	midSum := checksum.Sum([]byte("shared"))
	if !p.Cache().HasObject(midSum) {
		t.Error("dependency-referenced object swept after its producer was removed")
	}
}

func TestPushFetchRoundtrip(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "sync me")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	report, err := p.Push(context.Background(), TransferOptions{})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if report.Transferred != 1 || !report.OK() {
		t.Fatalf("push: %s", report.Summary())
	}

	// Drop the local cache copy, then fetch it back.
	wanted, err := p.WantedObjects(context.Background(), "")
	if err != nil {
		t.Fatalf("WantedObjects: %v", err)
	}
	for _, sum := range wanted {
		if err := os.Remove(p.Cache().ObjectPath(sum)); err != nil {
			t.Fatalf("dropping cache object: %v", err)
		}
	}

	report, err = p.Fetch(context.Background(), TransferOptions{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if report.Transferred != 1 {
		t.Fatalf("fetch: %s", report.Summary())
	}
	for _, sum := range wanted {
		if !p.Cache().HasObject(sum) {
			t.Errorf("object %s missing after fetch", sum)
		}
	}
}

func TestLockSkipsStaleStage(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "v1")

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	if err := p.SetLocked(context.Background(), "copy", true); err != nil {
		t.Fatalf("SetLocked: %v", err)
	}

	// Make the stage stale.
	if err := os.WriteFile(filepath.Join(root, "data.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("updating dependency: %v", err)
	}

	results, err := p.Repro(context.Background(), engine.Options{})
	if err != nil {
		t.Fatalf("repro: %v", err)
	}
	if len(results) != 1 || results[0].Status != engine.StatusSkipped {
		t.Fatalf("results = %+v, want one Skipped", results)
	}

	out, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(out) != "v1" {
		t.Errorf("locked stage output changed: %q", out)
	}
}

func TestRemoveStageDeletesRecord(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "copy", "data.txt", "out.txt", "bye")

	if err := p.RemoveStage(context.Background(), "copy", false); err != nil {
		t.Fatalf("RemoveStage: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "copy"+stage.RecordSuffix)); !os.IsNotExist(err) {
		t.Errorf("record still exists after removal")
	}

	stages, err := p.LoadStages(context.Background())
	if err != nil {
		t.Fatalf("LoadStages: %v", err)
	}
	if len(stages) != 0 {
		t.Errorf("loaded %d stages after removal, want 0", len(stages))
	}
}

func TestPipelineStatusPropagatesStaleness(t *testing.T) {
	p, root := newTestProject(t)
	addCopyStage(t, p, root, "first", "data.txt", "mid.txt", "chain")

	err := p.AddStage(context.Background(), &stage.Stage{
		Name:    "second",
		Command: "cp mid.txt final.txt",
		Deps:    []stage.Dependency{{Path: "mid.txt"}},
		Outs:    []stage.Output{{Path: "final.txt"}},
	})
	if err != nil {
		t.Fatalf("AddStage(second): %v", err)
	}

	if _, err := p.Repro(context.Background(), engine.Options{}); err != nil {
		t.Fatalf("repro: %v", err)
	}

	// Touch the root dependency: both stages must evaluate stale, the
	// second because its producer would run.
	if err := os.WriteFile(filepath.Join(root, "data.txt"), []byte("chain v2"), 0o644); err != nil {
		t.Fatalf("updating dependency: %v", err)
	}

	results, err := p.PipelineStatus(context.Background(), "")
	if err != nil {
		t.Fatalf("PipelineStatus: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, res := range results {
		if res.Status != engine.StatusStale {
			t.Errorf("stage %s status = %v, want Stale", res.Stage, res.Status)
		}
	}
}
