// Package project ties the pieces together: it discovers the project root,
// owns the open/close lifecycle of the state database and object cache, and
// exposes the high-level operations the CLI calls.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/cache"
	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/config"
	"github.com/marmos91/dittotrack/pkg/engine"
	"github.com/marmos91/dittotrack/pkg/remote"
	"github.com/marmos91/dittotrack/pkg/state"
	"github.com/marmos91/dittotrack/pkg/sync"
)

// ControlDirName is the project control directory, created by Init at the
// project root. Its presence is what marks a directory as a project root.
const ControlDirName = ".dittotrack"

// configFileName is the project config file inside the control directory.
const configFileName = "config.yaml"

var (
	// ErrNotAProject indicates no control directory was found walking up
	// from the starting directory.
	ErrNotAProject = errors.New("not inside a dittotrack project")

	// ErrAlreadyInitialized indicates Init was called inside an existing
	// project.
	ErrAlreadyInitialized = errors.New("project already initialized")
)

// FindRoot walks up from start until it finds a directory containing the
// control directory.
//
// Returns:
//   - string: Absolute project root path
//   - error: ErrNotAProject when the filesystem root is reached first
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, ControlDirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory above %s: %w", ControlDirName, start, ErrNotAProject)
		}
		dir = parent
	}
}

// Init creates the control directory at dir, making it a project root.
//
// The control directory gets a .gitignore excluding the cache and state
// database: records are committed to version control, object bytes never
// are.
func Init(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	controlDir := filepath.Join(dir, ControlDirName)
	if _, err := os.Stat(controlDir); err == nil {
		return fmt.Errorf("%s: %w", dir, ErrAlreadyInitialized)
	}

	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		return fmt.Errorf("failed to create control directory: %w", err)
	}

	gitignore := "# Local object cache and checksum state; never commit these.\ncache/\nstate/\n"
	if err := os.WriteFile(filepath.Join(controlDir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("failed to write control gitignore: %w", err)
	}

	logger.Info("initialized project at %s", dir)
	return nil
}

// Project is an open project: resolved root, loaded config, and live
// backends. Close releases the state database.
type Project struct {
	root   string
	cfg    *config.Config
	states state.Store
	sums   *checksum.Store
	cache  *cache.Cache
	engine *engine.Engine
}

// Open discovers the project root above start and opens its backends.
//
// The state database is opened for the lifetime of the Project; callers
// must Close when done or memoized checksums may not be flushed.
func Open(ctx context.Context, start string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := FindRoot(start)
	if err != nil {
		return nil, err
	}

	controlDir := filepath.Join(root, ControlDirName)

	cfg, err := config.Load(filepath.Join(controlDir, configFileName))
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)

	states, err := config.CreateStateStore(ctx, &cfg.State, controlDir)
	if err != nil {
		return nil, err
	}

	sums := checksum.NewStore(states)

	links, err := cache.ParseLinkType(cfg.Cache.Links)
	if err != nil {
		states.Close()
		return nil, err
	}

	cacheDir := cfg.Cache.Dir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(controlDir, cacheDir)
	}

	objects, err := cache.New(ctx, cache.Config{Dir: cacheDir, Links: links}, sums)
	if err != nil {
		states.Close()
		return nil, err
	}

	return &Project{
		root:   root,
		cfg:    cfg,
		states: states,
		sums:   sums,
		cache:  objects,
		engine: engine.New(objects, sums, root),
	}, nil
}

// Close flushes and releases the state database.
func (p *Project) Close() error {
	if err := p.states.Flush(context.Background()); err != nil {
		p.states.Close()
		return fmt.Errorf("failed to flush state store: %w", err)
	}
	return p.states.Close()
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Config returns the loaded project configuration.
func (p *Project) Config() *config.Config {
	return p.cfg
}

// Cache returns the project's object cache.
func (p *Project) Cache() *cache.Cache {
	return p.cache
}

// Engine returns the project's reproduction engine.
func (p *Project) Engine() *engine.Engine {
	return p.engine
}

// Sums returns the project's memoizing checksum store.
func (p *Project) Sums() *checksum.Store {
	return p.sums
}

// States returns the underlying state entry store.
func (p *Project) States() state.Store {
	return p.states
}

// Remote constructs the named remote, or the configured default when name
// is empty.
func (p *Project) Remote(ctx context.Context, name string) (remote.Remote, error) {
	if name == "" {
		name = p.cfg.DefaultRemote
	}
	if name == "" {
		return nil, fmt.Errorf("no remote selected and no default_remote configured")
	}

	rc, ok := p.cfg.Remotes[name]
	if !ok {
		return nil, fmt.Errorf("remote %q is not configured", name)
	}

	r, err := config.CreateRemote(ctx, &rc)
	if err != nil {
		return nil, fmt.Errorf("remote %q: %w", name, err)
	}
	return r, nil
}

// Syncer builds a sync protocol instance against the named remote. A jobs
// value of zero falls back to the configured default.
func (p *Project) Syncer(ctx context.Context, remoteName string, jobs int) (*sync.Syncer, error) {
	r, err := p.Remote(ctx, remoteName)
	if err != nil {
		return nil, err
	}

	if jobs <= 0 {
		jobs = p.cfg.Repro.Jobs
	}

	return sync.New(p.cache, r, sync.Options{Jobs: jobs}), nil
}

// Repro builds the current graph and brings the targeted stages up to
// date. See engine.Repro for traversal and failure semantics.
//
// After a real run the tracked-path manifest is refreshed with the full
// declared output set, so a later checkout can sweep outputs whose stage has
// been removed in the meantime. Dry runs mutate nothing, manifest included.
func (p *Project) Repro(ctx context.Context, opts engine.Options) ([]engine.Result, error) {
	g, err := p.Graph(ctx)
	if err != nil {
		return nil, err
	}

	results, err := p.engine.Repro(ctx, g, opts)
	if err != nil {
		return results, err
	}

	if !opts.DryRun {
		if err := p.writeTracked(declaredOutputs(g.Stages())); err != nil {
			return results, err
		}
	}
	return results, nil
}

// abs resolves a record-declared path against the project root.
func (p *Project) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}
