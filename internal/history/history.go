// Package history records how one field of many entities changes across
// revisions. Every field owns a single append-only keyframe arena; each
// branch keeps its own chain heads into it. A branch never copies its
// ancestors' chains: reads fall through the layers of a trunk instead.
package history

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jward/biome/internal/version"
)

// Keyframe is one node of a field's history: the value that became valid
// at revision Since.
type Keyframe[V any] struct {
	Value V
	Since version.Revision

	previous int32
}

const tail int32 = -1

type lane[K comparable] struct {
	branch version.Branch
	key    K
}

// History stores the keyframe chains of one field.
type History[K comparable, V any] struct {
	mu        sync.RWMutex
	equal     func(a, b V) bool
	keyframes []Keyframe[V]
	heads     map[lane[K]]int32
}

// New creates a history that suppresses pushes equal (by equal) to the
// current value.
func New[K comparable, V any](equal func(a, b V) bool) *History[K, V] {
	return &History[K, V]{
		equal: equal,
		heads: make(map[lane[K]]int32),
	}
}

// NewComparable creates a history for values compared with ==.
func NewComparable[K comparable, V comparable]() *History[K, V] {
	return New[K](func(a, b V) bool { return a == b })
}

// Push records value for key as of version v. When the branch already has a
// chain for key, the new value is compared with its head; otherwise it is
// compared with the value inherited through parents (the trunk layers below
// v.Branch). Equal values add nothing. Push reports whether a keyframe was
// added.
//
// Revisions must strictly increase along a branch's chain; violating that
// means two writers touched the branch and panics.
func (h *History[K, V]) Push(v version.Version, key K, value V, parents []version.Layer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	l := lane[K]{branch: v.Branch, key: key}
	head, ok := h.heads[l]
	if ok {
		current := h.keyframes[head]
		if v.Revision <= current.Since {
			panic(fmt.Sprintf("history: push at revision %d does not follow head at revision %d", v.Revision, current.Since))
		}
		if h.equal(current.Value, value) {
			return false
		}
	} else {
		head = tail
		if inherited, found := h.valueLocked(key, parents); found && h.equal(inherited, value) {
			return false
		}
	}

	h.keyframes = append(h.keyframes, Keyframe[V]{Value: value, Since: v.Revision, previous: head})
	h.heads[l] = int32(len(h.keyframes) - 1)
	return true
}

// Value returns the value of key visible through layers, newest layer
// first. Within a layer the chain is rewound to the first keyframe whose
// Since does not exceed the layer's limit. Absence after the last layer is
// reported with false; what absence means is up to the field.
func (h *History[K, V]) Value(key K, layers []version.Layer) (V, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valueLocked(key, layers)
}

func (h *History[K, V]) valueLocked(key K, layers []version.Layer) (V, bool) {
	for _, layer := range layers {
		head, ok := h.heads[lane[K]{branch: layer.Branch, key: key}]
		if !ok {
			continue
		}
		for i := head; i != tail; i = h.keyframes[i].previous {
			if h.keyframes[i].Since <= layer.Limit {
				return h.keyframes[i].Value, true
			}
		}
	}
	var zero V
	return zero, false
}

// Head returns the newest keyframe of the branch's local chain for key.
func (h *History[K, V]) Head(branch version.Branch, key K) (Keyframe[V], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	head, ok := h.heads[lane[K]{branch: branch, key: key}]
	if !ok {
		return Keyframe[V]{}, false
	}
	return h.keyframes[head], true
}

// Chain returns the branch's local chain for key, newest first.
func (h *History[K, V]) Chain(branch version.Branch, key K) []Keyframe[V] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	head, ok := h.heads[lane[K]{branch: branch, key: key}]
	if !ok {
		return nil
	}
	return h.chainLocked(head)
}

func (h *History[K, V]) chainLocked(head int32) []Keyframe[V] {
	var chain []Keyframe[V]
	for i := head; i != tail; i = h.keyframes[i].previous {
		chain = append(chain, h.keyframes[i])
	}
	return chain
}

// Restore appends a persisted keyframe to the branch's chain without
// equality suppression. Keyframes must be restored oldest first.
func (h *History[K, V]) Restore(branch version.Branch, key K, since version.Revision, value V) {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := lane[K]{branch: branch, key: key}
	head, ok := h.heads[l]
	if !ok {
		head = tail
	} else if since <= h.keyframes[head].Since {
		panic(fmt.Sprintf("history: restored keyframe at revision %d does not follow revision %d", since, h.keyframes[head].Since))
	}
	h.keyframes = append(h.keyframes, Keyframe[V]{Value: value, Since: since, previous: head})
	h.heads[l] = int32(len(h.keyframes) - 1)
}

// Entry is one branch-local chain, newest first.
type Entry[K comparable, V any] struct {
	Branch version.Branch
	Key    K
	Chain  []Keyframe[V]
}

// Entries returns every local chain, ordered by branch and then by the
// position of the chain's oldest keyframe, so replaying them through
// Restore reproduces the same arena order per lane.
func (h *History[K, V]) Entries() []Entry[K, V] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	type sortable struct {
		entry Entry[K, V]
		first int32
	}
	all := make([]sortable, 0, len(h.heads))
	for l, head := range h.heads {
		first := head
		for h.keyframes[first].previous != tail {
			first = h.keyframes[first].previous
		}
		all = append(all, sortable{
			entry: Entry[K, V]{Branch: l.branch, Key: l.key, Chain: h.chainLocked(head)},
			first: first,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].entry.Branch != all[j].entry.Branch {
			return all[i].entry.Branch < all[j].entry.Branch
		}
		return all[i].first < all[j].first
	})
	entries := make([]Entry[K, V], len(all))
	for i, s := range all {
		entries[i] = s.entry
	}
	return entries
}

// Len returns the number of keyframes across all branches.
func (h *History[K, V]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.keyframes)
}
