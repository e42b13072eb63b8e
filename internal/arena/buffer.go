package arena

import (
	"fmt"
	"sync"
)

// Record is one buffer element: the external identity it was inserted
// under, its culture, and the immutable value built by the factory.
type Record[ID comparable, C comparable, E any] struct {
	ID      ID
	Culture C
	Value   E
}

// Buffer is an append-only store for one entity kind on one branch. Its
// offsets start where the parent branch's buffer stood at the fork point,
// so offsets along one lineage never overlap.
//
// One writer may insert while any number of readers look up or slice; the
// mutex guards the id map and the records slice header.
type Buffer[ID comparable, C comparable, E any] struct {
	mu      sync.RWMutex
	start   uint32
	records []Record[ID, C, E]
	ids     map[ID]uint32
}

// NewBuffer creates an empty buffer whose first element gets offset start.
func NewBuffer[ID comparable, C comparable, E any](start uint32) *Buffer[ID, C, E] {
	return &Buffer[ID, C, E]{
		start: start,
		ids:   make(map[ID]uint32),
	}
}

// Start returns the offset of the first local element.
func (b *Buffer[ID, C, E]) Start() uint32 {
	return b.start
}

// End returns one past the offset of the last local element.
func (b *Buffer[ID, C, E]) End() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.start + uint32(len(b.records))
}

// Len returns the number of local elements.
func (b *Buffer[ID, C, E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Insert returns the index already assigned to id, or appends a new record
// built by factory. The second result reports whether a record was added.
// The factory runs under the write lock and must not touch the buffer.
func (b *Buffer[ID, C, E]) Insert(id ID, culture C, factory func(Index[C]) E) (Index[C], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset, ok := b.ids[id]; ok {
		return Index[C]{Culture: b.records[offset-b.start].Culture, Offset: offset}, false
	}
	index := Index[C]{Culture: culture, Offset: b.start + uint32(len(b.records))}
	b.records = append(b.records, Record[ID, C, E]{
		ID:      id,
		Culture: culture,
		Value:   factory(index),
	})
	b.ids[id] = index.Offset
	return index, true
}

// Lookup returns the index assigned to id on this branch, if any.
func (b *Buffer[ID, C, E]) Lookup(id ID) (Index[C], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	offset, ok := b.ids[id]
	if !ok {
		return Index[C]{}, false
	}
	return Index[C]{Culture: b.records[offset-b.start].Culture, Offset: offset}, true
}

// Contains reports whether offset falls inside the local range.
func (b *Buffer[ID, C, E]) Contains(offset uint32) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return offset >= b.start && offset < b.start+uint32(len(b.records))
}

// At returns the record at index. Indexing outside the buffer is a broken
// invariant in the caller and panics.
func (b *Buffer[ID, C, E]) At(index Index[C]) Record[ID, C, E] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return at(b.records, b.start, b.start+uint32(len(b.records)), index)
}

// Slice freezes the buffer up to (but excluding) offset upTo. Elements
// appended later are invisible through the slice.
func (b *Buffer[ID, C, E]) Slice(upTo uint32) Slice[ID, C, E] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	end := b.start + uint32(len(b.records))
	if upTo < b.start || upTo > end {
		panic(fmt.Sprintf("arena: slice end %d outside buffer range [%d, %d]", upTo, b.start, end))
	}
	return Slice[ID, C, E]{
		buffer:  b,
		start:   b.start,
		end:     upTo,
		records: b.records[:upTo-b.start],
	}
}

func at[ID comparable, C comparable, E any](records []Record[ID, C, E], start, end uint32, index Index[C]) Record[ID, C, E] {
	if index.Offset < start || index.Offset >= end {
		panic(fmt.Sprintf("arena: index %v outside buffer range [%d, %d)", index, start, end))
	}
	r := records[index.Offset-start]
	if r.Culture != index.Culture {
		panic(fmt.Sprintf("arena: index %v has culture %v on record", index, r.Culture))
	}
	return r
}
