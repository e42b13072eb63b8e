// Package tree keeps the branches of one package: their buffers, their
// committed revisions, and the trunk chains that answer what existed at a
// given version.
package tree

import (
	"fmt"
	"sync"

	"github.com/jward/biome/internal/arena"
	"github.com/jward/biome/internal/version"
)

// Tree is the set of branches belonging to one package.
type Tree struct {
	Package version.Package

	mu       sync.RWMutex
	branches []*Branch
	names    map[string]version.Branch
}

// New creates an empty tree for pkg.
func New(pkg version.Package) *Tree {
	return &Tree{
		Package: pkg,
		names:   make(map[string]version.Branch),
	}
}

// Fork creates a branch named name. With a nil from it is a new root
// branch; otherwise it continues from the committed version from.
func (t *Tree) Fork(from *version.Version, name string) (*Branch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.names[name]; ok {
		return nil, fmt.Errorf("fork %q: %w", name, ErrBranchExists)
	}

	var base Ring
	if from != nil {
		if int(from.Branch) >= len(t.branches) {
			return nil, fmt.Errorf("fork %q from %s: %w", name, from, ErrBranchNotFound)
		}
		rev, ok := t.branches[from.Branch].Revision(from.Revision)
		if !ok {
			return nil, fmt.Errorf("fork %q from %s: %w", name, from, ErrRevisionNotFound)
		}
		base = rev.Ring
	}

	id := version.Branch(len(t.branches))
	b := newBranch(id, name, from, base)
	t.branches = append(t.branches, b)
	t.names[name] = id
	return b, nil
}

// Branch returns the branch with the given id.
func (t *Tree) Branch(id version.Branch) (*Branch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.branches) {
		return nil, fmt.Errorf("get branch %d: %w", id, ErrBranchNotFound)
	}
	return t.branches[id], nil
}

// Named returns the branch with the given name.
func (t *Tree) Named(name string) (*Branch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.names[name]
	if !ok {
		return nil, fmt.Errorf("get branch %q: %w", name, ErrBranchNotFound)
	}
	return t.branches[id], nil
}

// Branches returns every branch in creation order.
func (t *Tree) Branches() []*Branch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Branch(nil), t.branches...)
}

// Trunk builds the epoch chain for a committed version: the version's
// branch cut at the version, then each ancestor cut at its fork point.
func (t *Tree) Trunk(v version.Version) (Trunk, error) {
	trunk := Trunk{Package: t.Package, Version: v}
	at := v
	for {
		b, err := t.Branch(at.Branch)
		if err != nil {
			return Trunk{}, fmt.Errorf("build trunk for %s: %w", v, err)
		}
		rev, ok := b.Revision(at.Revision)
		if !ok {
			return Trunk{}, fmt.Errorf("build trunk for %s: revision %s: %w", v, at, ErrRevisionNotFound)
		}
		trunk.Epochs = append(trunk.Epochs, Epoch{
			Branch:   b,
			Limit:    at.Revision,
			Modules:  b.Modules.Slice(rev.Ring.Modules),
			Symbols:  b.Symbols.Slice(rev.Ring.Symbols),
			Articles: b.Articles.Slice(rev.Ring.Articles),
		})
		if b.Fork == nil {
			return trunk, nil
		}
		at = *b.Fork
	}
}

// Head returns the writer's view of a branch: its live buffers, then the
// parent trunk at the fork.
func (t *Tree) Head(id version.Branch) (Head, error) {
	b, err := t.Branch(id)
	if err != nil {
		return Head{}, err
	}
	h := Head{Package: t.Package, Branch: b}
	if b.Fork != nil {
		parent, err := t.Trunk(*b.Fork)
		if err != nil {
			return Head{}, fmt.Errorf("open head of %q: %w", b.Name, err)
		}
		h.Parent = parent
	}
	return h, nil
}

func newModuleBuffer(start uint32) *ModuleBuffer {
	return arena.NewBuffer[string, version.Package, Module](start)
}

func newSymbolBuffer(start uint32) *SymbolBuffer {
	return arena.NewBuffer[string, arena.ModuleIndex, Symbol](start)
}

func newArticleBuffer(start uint32) *ArticleBuffer {
	return arena.NewBuffer[string, arena.ModuleIndex, Article](start)
}
