package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/biome/internal/version"
)

type testBuffer = Buffer[string, version.Package, string]

func newTestBuffer(start uint32) *testBuffer {
	return NewBuffer[string, version.Package, string](start)
}

func insertNamed(b *testBuffer, id string) ModuleIndex {
	index, _ := b.Insert(id, 1, func(ModuleIndex) string { return "value:" + id })
	return index
}

func TestBuffer_InsertIsIdempotent(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(0)

	calls := 0
	factory := func(ModuleIndex) string {
		calls++
		return "Swift"
	}
	first, added := b.Insert("s:Swift", 1, factory)
	require.True(t, added)
	second, added := b.Insert("s:Swift", 1, factory)
	assert.False(t, added)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, calls, "factory must not run for an existing id")
}

func TestBuffer_OffsetsContinueFromStart(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(7)
	a := insertNamed(b, "a")
	c := insertNamed(b, "c")

	assert.Equal(t, uint32(7), a.Offset)
	assert.Equal(t, uint32(8), c.Offset)
	assert.Equal(t, uint32(7), b.Start())
	assert.Equal(t, uint32(9), b.End())
	assert.True(t, b.Contains(8))
	assert.False(t, b.Contains(6))
}

func TestBuffer_FactoryReceivesIndex(t *testing.T) {
	t.Parallel()
	b := NewBuffer[string, version.Package, ModuleIndex](3)
	index, _ := b.Insert("x", 2, func(i ModuleIndex) ModuleIndex { return i })
	assert.Equal(t, index, b.At(index).Value)
	assert.Equal(t, version.Package(2), index.Culture)
}

func TestBuffer_Lookup(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(0)
	index := insertNamed(b, "a")

	got, ok := b.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, index, got)

	_, ok = b.Lookup("missing")
	assert.False(t, ok)
}

func TestBuffer_AtOutOfBoundsPanics(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(4)
	insertNamed(b, "a")

	assert.Panics(t, func() { b.At(ModuleIndex{Culture: 1, Offset: 3}) })
	assert.Panics(t, func() { b.At(ModuleIndex{Culture: 1, Offset: 5}) })
	assert.Panics(t, func() { b.At(ModuleIndex{Culture: 2, Offset: 4}) }, "culture mismatch")
	assert.NotPanics(t, func() { b.At(ModuleIndex{Culture: 1, Offset: 4}) })
}

func TestSlice_HidesLaterInserts(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(0)
	a := insertNamed(b, "a")
	frozen := b.Slice(b.End())
	later := insertNamed(b, "later")

	_, ok := frozen.Lookup("later")
	assert.False(t, ok)
	assert.False(t, frozen.Contains(later.Offset))
	assert.Panics(t, func() { frozen.At(later) })

	got, ok := frozen.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, "value:a", frozen.At(a).Value)
}

func TestSlice_All(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(10)
	insertNamed(b, "a")
	insertNamed(b, "b")
	insertNamed(b, "c")

	var ids []string
	var offsets []uint32
	for index, r := range b.Slice(12).All() {
		ids = append(ids, r.ID)
		offsets = append(offsets, index.Offset)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []uint32{10, 11}, offsets)
}

func TestSlice_BoundsPanic(t *testing.T) {
	t.Parallel()
	b := newTestBuffer(2)
	insertNamed(b, "a")
	assert.Panics(t, func() { b.Slice(1) })
	assert.Panics(t, func() { b.Slice(4) })
	assert.NotPanics(t, func() { b.Slice(2) })
}

func TestSlice_ZeroValueIsEmpty(t *testing.T) {
	t.Parallel()
	var s Slice[string, version.Package, string]
	_, ok := s.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPosition(t *testing.T) {
	t.Parallel()
	index := ModuleIndex{Culture: 3, Offset: 9}
	p := At(index, 2)
	assert.Equal(t, index, p.Index)
	assert.Equal(t, version.Branch(2), p.Branch)
	assert.Equal(t, version.Package(3), Package(index))
}
