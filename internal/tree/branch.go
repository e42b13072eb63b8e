package tree

import (
	"fmt"
	"sync"

	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/version"
)

// Branch is one timeline of a package. Its buffers begin where its parent's
// stood at the fork and its revision numbers continue the parent's.
type Branch struct {
	ID   version.Branch
	Name string
	// Fork is the parent version this branch was created from, or nil for a
	// root branch.
	Fork *version.Version

	Modules  *ModuleBuffer
	Symbols  *SymbolBuffer
	Articles *ArticleBuffer
	Routes   *route.Table

	writer sync.Mutex

	mu        sync.RWMutex
	first     version.Revision
	revisions []Revision
}

func newBranch(id version.Branch, name string, fork *version.Version, base Ring) *Branch {
	b := &Branch{
		ID:       id,
		Name:     name,
		Modules:  newModuleBuffer(base.Modules),
		Symbols:  newSymbolBuffer(base.Symbols),
		Articles: newArticleBuffer(base.Articles),
		Routes:   route.NewTable(),
	}
	if fork != nil {
		f := *fork
		b.Fork = &f
		b.first = f.Revision + 1
	}
	return b
}

// Acquire claims the branch for one writer pass. It reports false when
// another pass holds it.
func (b *Branch) Acquire() bool { return b.writer.TryLock() }

// Release ends the writer pass started by Acquire.
func (b *Branch) Release() { b.writer.Unlock() }

// First returns the number of the branch's first own revision.
func (b *Branch) First() version.Revision { return b.first }

// Next returns the number the next commit will receive.
func (b *Branch) Next() version.Revision {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.first + version.Revision(len(b.revisions))
}

// Ring returns the current extent of the branch's buffers.
func (b *Branch) Ring() Ring {
	return Ring{
		Modules:  b.Modules.End(),
		Symbols:  b.Symbols.End(),
		Articles: b.Articles.End(),
	}
}

// Commit seals the buffers' current extent as the next revision.
func (b *Branch) Commit(hash string, tag version.Tag, pins version.Pins) Revision {
	b.mu.Lock()
	defer b.mu.Unlock()
	rev := Revision{
		Number: b.first + version.Revision(len(b.revisions)),
		Ring:   b.Ring(),
		Pins:   pins.Clone(),
		Hash:   hash,
		Tag:    tag,
	}
	b.revisions = append(b.revisions, rev)
	return rev
}

// Restore appends a persisted revision. Its number must be the one Commit
// would have assigned and its ring must lie within the buffers.
func (b *Branch) Restore(rev Revision) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.first + version.Revision(len(b.revisions))
	if rev.Number != next {
		return fmt.Errorf("restore revision %d on branch %q: expected revision %d", rev.Number, b.Name, next)
	}
	ring := b.Ring()
	if rev.Ring.Modules > ring.Modules || rev.Ring.Symbols > ring.Symbols || rev.Ring.Articles > ring.Articles {
		return fmt.Errorf("restore revision %d on branch %q: ring exceeds buffers", rev.Number, b.Name)
	}
	rev.Pins = rev.Pins.Clone()
	b.revisions = append(b.revisions, rev)
	return nil
}

// Revision returns a committed revision of this branch.
func (b *Branch) Revision(r version.Revision) (Revision, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if r < b.first || int(r-b.first) >= len(b.revisions) {
		return Revision{}, false
	}
	return b.revisions[r-b.first], true
}

// Latest returns the newest committed revision.
func (b *Branch) Latest() (Revision, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.revisions) == 0 {
		return Revision{}, false
	}
	return b.revisions[len(b.revisions)-1], true
}

// Find returns the newest revision with the given content hash.
func (b *Branch) Find(hash string) (Revision, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := len(b.revisions) - 1; i >= 0; i-- {
		if b.revisions[i].Hash == hash {
			return b.revisions[i], true
		}
	}
	return Revision{}, false
}

// Revisions returns the committed revisions oldest first.
func (b *Branch) Revisions() []Revision {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Revision(nil), b.revisions...)
}

// Version returns the version of revision r on this branch.
func (b *Branch) Version(r version.Revision) version.Version {
	return version.Version{Branch: b.ID, Revision: r}
}
