package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes the CLI with args and returns combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// setupProject initializes a project in a temp dir with an in-memory state
// store and chdirs into it.
func setupProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	t.Chdir(root)

	if _, err := runCommand(t, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg := "logging:\n  level: ERROR\nstate:\n  type: memory\n"
	cfgPath := filepath.Join(root, ".dittotrack", "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	return root
}

func TestInitRefusesSecondRun(t *testing.T) {
	setupProject(t)

	if _, err := runCommand(t, "init"); err == nil {
		t.Fatal("second init should fail")
	}
}

func TestAddReproStatusFlow(t *testing.T) {
	root := setupProject(t)

	if err := os.WriteFile(filepath.Join(root, "data.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing dependency: %v", err)
	}

	out, err := runCommand(t, "add", "--name", "copy", "--deps", "data.txt", "--outs", "out.txt", "--", "cp", "data.txt", "out.txt")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err = runCommand(t, "repro")
	if err != nil {
		t.Fatalf("repro: %v\n%s", err, out)
	}
	if !strings.Contains(out, "committed") {
		t.Errorf("repro output missing committed stage:\n%s", out)
	}

	out, err = runCommand(t, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "up to date") {
		t.Errorf("status output missing up to date stage:\n%s", out)
	}
}

func TestReproOutsideProjectFails(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := runCommand(t, "repro"); err == nil {
		t.Fatal("repro outside a project should fail")
	}
}

func TestAddRequiresName(t *testing.T) {
	setupProject(t)

	if _, err := runCommand(t, "add", "--outs", "out.txt", "--", "true"); err == nil {
		t.Fatal("add without --name should fail")
	}
}

func TestVerifyCleanProject(t *testing.T) {
	root := setupProject(t)

	if err := os.WriteFile(filepath.Join(root, "data.txt"), []byte("v"), 0o644); err != nil {
		t.Fatalf("writing dependency: %v", err)
	}
	if _, err := runCommand(t, "add", "--name", "copy", "--deps", "data.txt", "--outs", "out.txt", "--", "cp", "data.txt", "out.txt"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := runCommand(t, "repro"); err != nil {
		t.Fatalf("repro: %v", err)
	}

	out, err := runCommand(t, "verify")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0 corrupt") {
		t.Errorf("verify output = %q", out)
	}
}
