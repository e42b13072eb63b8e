package arena

import "iter"

// Slice is an immutable view of a buffer prefix. Slices are what trunk
// chains are built from; they stay valid while the buffer keeps growing.
// The zero Slice is empty.
type Slice[ID comparable, C comparable, E any] struct {
	buffer  *Buffer[ID, C, E]
	start   uint32
	end     uint32
	records []Record[ID, C, E]
}

// Start returns the offset of the first element in the slice.
func (s Slice[ID, C, E]) Start() uint32 { return s.start }

// End returns one past the offset of the last element in the slice.
func (s Slice[ID, C, E]) End() uint32 { return s.end }

// Len returns the number of elements in the slice.
func (s Slice[ID, C, E]) Len() int { return len(s.records) }

// Contains reports whether offset is visible through the slice.
func (s Slice[ID, C, E]) Contains(offset uint32) bool {
	return offset >= s.start && offset < s.end
}

// Lookup returns the index of id if it was inserted before the slice end.
func (s Slice[ID, C, E]) Lookup(id ID) (Index[C], bool) {
	if s.buffer == nil {
		return Index[C]{}, false
	}
	s.buffer.mu.RLock()
	offset, ok := s.buffer.ids[id]
	s.buffer.mu.RUnlock()
	if !ok || offset >= s.end {
		return Index[C]{}, false
	}
	return Index[C]{Culture: s.records[offset-s.start].Culture, Offset: offset}, true
}

// At returns the record at index, panicking outside the slice bounds.
func (s Slice[ID, C, E]) At(index Index[C]) Record[ID, C, E] {
	return at(s.records, s.start, s.end, index)
}

// All iterates the slice in offset order.
func (s Slice[ID, C, E]) All() iter.Seq2[Index[C], Record[ID, C, E]] {
	return func(yield func(Index[C], Record[ID, C, E]) bool) {
		for i, r := range s.records {
			index := Index[C]{Culture: r.Culture, Offset: s.start + uint32(i)}
			if !yield(index, r) {
				return
			}
		}
	}
}
