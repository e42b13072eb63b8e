package biome

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/tree"
)

// Consumer is a revision of another package that pinned a version of this
// one.
type Consumer struct {
	Package PackageIndex
	Version Version
}

// Package aggregates everything one package records: its branches, its
// path interner, its field histories and its tag registry.
type Package struct {
	Index PackageIndex
	Name  string

	tree     *tree.Tree
	interner *route.Interner
	fields   fields
	logger   *slog.Logger

	mu        sync.RWMutex
	tags      map[string]Version
	consumers map[Version][]Consumer
}

func newPackage(index PackageIndex, name string, logger *slog.Logger) *Package {
	if logger == nil {
		logger = slog.Default()
	}
	return &Package{
		Index:     index,
		Name:      name,
		tree:      tree.New(index),
		interner:  route.NewInterner(),
		fields:    newFields(),
		logger:    logger.With(slog.String("package", name)),
		tags:      make(map[string]Version),
		consumers: make(map[Version][]Consumer),
	}
}

// Fork creates a branch. A nil from creates a new root branch.
func (p *Package) Fork(from *Version, name string) (*Branch, error) {
	b, err := p.tree.Fork(from, name)
	if err != nil {
		return nil, fmt.Errorf("package %q: %w", p.Name, err)
	}
	return b, nil
}

// Branch returns the branch named name.
func (p *Package) Branch(name string) (*Branch, error) {
	b, err := p.tree.Named(name)
	if err != nil {
		return nil, fmt.Errorf("package %q: %w", p.Name, err)
	}
	return b, nil
}

// Branches returns every branch in creation order.
func (p *Package) Branches() []*Branch {
	return p.tree.Branches()
}

// Latest returns the newest committed version of the named branch.
func (p *Package) Latest(branch string) (Version, error) {
	b, err := p.Branch(branch)
	if err != nil {
		return Version{}, err
	}
	rev, ok := b.Latest()
	if !ok {
		return Version{}, fmt.Errorf("package %q: latest of %q: %w", p.Name, branch, ErrRevisionNotFound)
	}
	return b.Version(rev.Number), nil
}

// Revision returns the commit record of v.
func (p *Package) Revision(v Version) (RevisionInfo, error) {
	b, err := p.tree.Branch(v.Branch)
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("package %q: %w", p.Name, err)
	}
	rev, ok := b.Revision(v.Revision)
	if !ok {
		return RevisionInfo{}, fmt.Errorf("package %q: revision %s: %w", p.Name, v, ErrRevisionNotFound)
	}
	return rev, nil
}

// Trunk returns the epoch chain visible from v.
func (p *Package) Trunk(v Version) (Trunk, error) {
	t, err := p.tree.Trunk(v)
	if err != nil {
		return Trunk{}, fmt.Errorf("package %q: %w", p.Name, err)
	}
	return t, nil
}

// Tagged returns the version labelled tag.
func (p *Package) Tagged(tag string) (Version, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.tags[ParseTag(tag).String()]
	if !ok {
		return Version{}, fmt.Errorf("package %q: tag %q: %w", p.Name, tag, ErrTagNotFound)
	}
	return v, nil
}

// Tags returns a copy of the tag registry.
func (p *Package) Tags() map[string]Version {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Version, len(p.tags))
	for k, v := range p.tags {
		out[k] = v
	}
	return out
}

// Consumers returns the revisions of other packages that pinned v.
func (p *Package) Consumers(v Version) []Consumer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Consumer(nil), p.consumers[v]...)
}

func (p *Package) addConsumer(v Version, c Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.consumers[v] {
		if existing == c {
			return
		}
	}
	p.consumers[v] = append(p.consumers[v], c)
	sort.Slice(p.consumers[v], func(i, j int) bool {
		a, b := p.consumers[v][i], p.consumers[v][j]
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if a.Version.Branch != b.Version.Branch {
			return a.Version.Branch < b.Version.Branch
		}
		return a.Version.Revision < b.Version.Revision
	})
}

// checkTag validates a tag for the revision about to be committed on b.
func (p *Package) checkTag(b *Branch, tag Tag) error {
	if tag.IsZero() {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.tags[tag.String()]; ok {
		return fmt.Errorf("package %q: tag %s on %s: %w", p.Name, tag, v, ErrTagExists)
	}
	if !tag.IsSemantic() {
		return nil
	}
	prev, ok := p.previousSemantic(b)
	if !ok {
		return nil
	}
	if cmp, _ := tag.Compare(prev); cmp <= 0 {
		return fmt.Errorf("package %q: tag %s after %s on %q: %w", p.Name, tag, prev, b.Name, ErrTagOrder)
	}
	return nil
}

// previousSemantic returns the newest semantic tag visible from the head of
// b, following fork points into ancestor branches.
func (p *Package) previousSemantic(b *Branch) (Tag, bool) {
	limit := Revision(math.MaxUint32)
	for b != nil {
		revs := b.Revisions()
		for i := len(revs) - 1; i >= 0; i-- {
			if revs[i].Number <= limit && revs[i].Tag.IsSemantic() {
				return revs[i].Tag, true
			}
		}
		if b.Fork == nil {
			break
		}
		limit = b.Fork.Revision
		parent, err := p.tree.Branch(b.Fork.Branch)
		if err != nil {
			break
		}
		b = parent
	}
	return Tag{}, false
}

func (p *Package) registerTag(tag Tag, v Version) {
	if tag.IsZero() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tags[tag.String()] = v
}
