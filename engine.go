package biome

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jward/biome/internal/config"
	"github.com/jward/biome/internal/store"
)

// Engine is the registry of packages. It opens pinned contexts across them
// and, when opened on a database, saves and loads snapshots of its state.
type Engine struct {
	mu       sync.RWMutex
	packages []*Package
	byName   map[string]*Package

	logger *slog.Logger
	config config.Config
	store  *store.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the configuration. Unset fields keep their defaults.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.config.Merge(cfg)
	}
}

// New creates an in-memory engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		byName: make(map[string]*Package),
		logger: slog.Default(),
		config: *config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open creates an engine backed by a SQLite database at dbPath and loads
// the newest snapshot it holds, if any.
func Open(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("biome: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("biome: migrate: %w", err)
	}

	e := New(opts...)
	e.store = s
	if err := e.Load(); err != nil && !errors.Is(err, store.ErrNoSnapshot) {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() config.Config { return e.config }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// CreatePackage registers a new, empty package.
func (e *Engine) CreatePackage(name string) (*Package, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createLocked(name)
}

func (e *Engine) createLocked(name string) (*Package, error) {
	if name == "" {
		return nil, fmt.Errorf("create package: empty name")
	}
	if _, ok := e.byName[name]; ok {
		return nil, fmt.Errorf("create package %q: %w", name, ErrPackageExists)
	}
	if len(e.packages) > int(^PackageIndex(0)) {
		return nil, fmt.Errorf("create package %q: %w", name, ErrTooManyPackages)
	}
	p := newPackage(PackageIndex(len(e.packages)), name, e.logger)
	e.packages = append(e.packages, p)
	e.byName[name] = p
	e.logger.Debug("Created package", slog.String("package", name), slog.Int("index", int(p.Index)))
	return p, nil
}

// Package returns the package named name.
func (e *Engine) Package(name string) (*Package, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("package %q: %w", name, ErrPackageNotFound)
	}
	return p, nil
}

// PackageAt returns the package with the given index.
func (e *Engine) PackageAt(index PackageIndex) (*Package, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if int(index) >= len(e.packages) {
		return nil, fmt.Errorf("package %d: %w", index, ErrPackageNotFound)
	}
	return e.packages[index], nil
}

// Packages returns every package in index order.
func (e *Engine) Packages() []*Package {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Package(nil), e.packages...)
}

// Lookup turns a reference into a version of the named package. A ref is
// one of: empty (latest of the default branch), a tag, a branch name
// (its latest revision), or "branch@revision".
func (e *Engine) Lookup(pkg, ref string) (Version, error) {
	p, err := e.Package(pkg)
	if err != nil {
		return Version{}, err
	}
	if ref == "" {
		return p.Latest(e.config.Tree.DefaultBranch)
	}
	if name, rev, ok := strings.Cut(ref, "@"); ok {
		n, err := strconv.ParseUint(rev, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("lookup %s@%s: bad revision: %w", pkg, ref, err)
		}
		b, err := p.Branch(name)
		if err != nil {
			return Version{}, err
		}
		v := b.Version(Revision(n))
		if _, err := p.Revision(v); err != nil {
			return Version{}, err
		}
		return v, nil
	}
	if v, err := p.Tagged(ref); err == nil {
		return v, nil
	}
	v, err := p.Latest(ref)
	if errors.Is(err, ErrBranchNotFound) {
		return Version{}, fmt.Errorf("lookup %s@%s: neither a tag nor a branch: %w", pkg, ref, ErrRevisionNotFound)
	}
	return v, err
}

// DependencyRef names a dependency version by package name and reference
// (see Lookup).
type DependencyRef struct {
	Package string
	Ref     string
}

// Import is an Update addressed by package name. The package is created on
// first import; an empty branch means the configured default branch.
type Import struct {
	Package      string
	Branch       string
	Tag          string
	Graphs       []ModuleGraph
	Dependencies []DependencyRef
}

// Update resolves the import's dependency references and builds one
// revision of the package.
func (e *Engine) Update(imp Import) (*UpdateResult, error) {
	p, err := e.ensurePackage(imp.Package)
	if err != nil {
		return nil, err
	}
	deps := make([]Dependency, 0, len(imp.Dependencies))
	for _, ref := range imp.Dependencies {
		dep, err := e.Package(ref.Package)
		if err != nil {
			return nil, fmt.Errorf("update %q: %w", imp.Package, err)
		}
		v, err := e.Lookup(ref.Package, ref.Ref)
		if err != nil {
			return nil, fmt.Errorf("update %q: %w", imp.Package, err)
		}
		deps = append(deps, Dependency{Package: dep, Version: v})
	}
	branch := imp.Branch
	if branch == "" {
		branch = e.config.Tree.DefaultBranch
	}
	return p.Update(UpdateRequest{
		Branch:       branch,
		Tag:          imp.Tag,
		Graphs:       imp.Graphs,
		Dependencies: deps,
	})
}

func (e *Engine) ensurePackage(name string) (*Package, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.byName[name]; ok {
		return p, nil
	}
	return e.createLocked(name)
}

// Fork creates a branch of pkg named name from the version ref points at.
func (e *Engine) Fork(pkg, ref, name string) (*Branch, error) {
	p, err := e.Package(pkg)
	if err != nil {
		return nil, err
	}
	v, err := e.Lookup(pkg, ref)
	if err != nil {
		return nil, err
	}
	return p.Fork(&v, name)
}

// Context opens a pinned context on pkg at v.
func (e *Engine) Context(pkg string, v Version) (*Context, error) {
	p, err := e.Package(pkg)
	if err != nil {
		return nil, err
	}
	c, err := p.Context(v, e.PackageAt)
	if err != nil {
		return nil, err
	}
	c.SetParallelism(e.config.Resolver.Parallelism)
	return c, nil
}

// ContextAt opens a pinned context on pkg at the version ref points at.
func (e *Engine) ContextAt(pkg, ref string) (*Context, error) {
	v, err := e.Lookup(pkg, ref)
	if err != nil {
		return nil, err
	}
	return e.Context(pkg, v)
}

// Save writes a snapshot of every package and prunes old snapshots down to
// the configured number. It fails with ErrBranchBusy while any writer pass
// is running.
func (e *Engine) Save() (string, error) {
	if e.store == nil {
		return "", fmt.Errorf("save: %w", ErrNoStore)
	}
	snap, release, err := e.snapshot()
	if err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	defer release()

	id, err := e.store.SaveSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	if keep := e.config.Store.KeepSnapshots; keep > 0 {
		pruned, err := e.store.Prune(keep)
		if err != nil {
			return id, fmt.Errorf("save: %w", err)
		}
		if pruned > 0 {
			e.logger.Debug("Pruned snapshots", slog.Int("count", pruned))
		}
	}
	e.logger.Info("Saved snapshot", slog.String("id", id), slog.Int("packages", len(snap.Packages)))
	return id, nil
}

// Load replaces the engine's packages with the newest snapshot.
func (e *Engine) Load() error {
	if e.store == nil {
		return fmt.Errorf("load: %w", ErrNoStore)
	}
	snap, err := e.store.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := e.restore(snap); err != nil {
		return fmt.Errorf("load snapshot %s: %w", snap.ID, err)
	}
	e.logger.Info("Loaded snapshot", slog.String("id", snap.ID), slog.Int("packages", len(snap.Packages)))
	return nil
}
