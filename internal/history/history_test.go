package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/biome/internal/version"
)

const (
	mainBranch    version.Branch = 0
	featureBranch version.Branch = 1
)

func at(branch version.Branch, r version.Revision) version.Version {
	return version.Version{Branch: branch, Revision: r}
}

func layer(branch version.Branch, limit version.Revision) version.Layer {
	return version.Layer{Branch: branch, Limit: limit}
}

func TestPush_SuppressesNoOps(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, string]()

	assert.True(t, h.Push(at(mainBranch, 0), "S", "func foo()", nil))
	assert.False(t, h.Push(at(mainBranch, 1), "S", "func foo()", nil))
	require.Len(t, h.Chain(mainBranch, "S"), 1)

	assert.True(t, h.Push(at(mainBranch, 2), "S", "func foo() throws", nil))
	chain := h.Chain(mainBranch, "S")
	require.Len(t, chain, 2)
	assert.Equal(t, version.Revision(2), chain[0].Since)
	assert.Equal(t, version.Revision(0), chain[1].Since)

	v, ok := h.Value("S", []version.Layer{layer(mainBranch, 1)})
	require.True(t, ok)
	assert.Equal(t, "func foo()", v)

	v, ok = h.Value("S", []version.Layer{layer(mainBranch, 2)})
	require.True(t, ok)
	assert.Equal(t, "func foo() throws", v)
}

func TestPush_ChainMonotonicity(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, int]()
	for r := version.Revision(0); r < 10; r++ {
		h.Push(at(mainBranch, r), "k", int(r%3), nil)
	}
	chain := h.Chain(mainBranch, "k")
	require.NotEmpty(t, chain)
	for i := 1; i < len(chain); i++ {
		assert.Less(t, chain[i].Since, chain[i-1].Since, "validity starts must increase from tail to head")
	}
}

func TestPush_NonIncreasingRevisionPanics(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, int]()
	h.Push(at(mainBranch, 3), "k", 1, nil)
	assert.Panics(t, func() { h.Push(at(mainBranch, 3), "k", 2, nil) })
	assert.Panics(t, func() { h.Push(at(mainBranch, 2), "k", 2, nil) })
}

func TestValue_BeforeFirstKeyframeIsAbsent(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, int]()
	h.Push(at(mainBranch, 5), "k", 1, nil)
	_, ok := h.Value("k", []version.Layer{layer(mainBranch, 4)})
	assert.False(t, ok)
}

func TestFork_UntouchedFieldFallsThrough(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, string]()
	h.Push(at(mainBranch, 0), "S", "a", nil)
	h.Push(at(mainBranch, 1), "S", "b", nil)
	// main keeps moving after the fork at revision 1
	h.Push(at(mainBranch, 2), "S", "c", nil)

	childTrunk := func(r version.Revision) []version.Layer {
		return []version.Layer{layer(featureBranch, r), layer(mainBranch, 1)}
	}
	mainTrunk := func(r version.Revision) []version.Layer {
		return []version.Layer{layer(mainBranch, r)}
	}

	assert.Empty(t, h.Chain(featureBranch, "S"))
	for r := version.Revision(0); r <= 1; r++ {
		want, _ := h.Value("S", mainTrunk(r))
		got, ok := h.Value("S", childTrunk(r))
		require.True(t, ok)
		assert.Equal(t, want, got, "revision %d", r)
	}
	got, _ := h.Value("S", childTrunk(3))
	assert.Equal(t, "b", got, "child does not see main's post-fork change")
}

func TestFork_PushComparesWithInheritedValue(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, string]()
	h.Push(at(mainBranch, 1), "S", "a", nil)

	parents := []version.Layer{layer(mainBranch, 1)}
	assert.False(t, h.Push(at(featureBranch, 2), "S", "a", parents))
	assert.Empty(t, h.Chain(featureBranch, "S"))

	assert.True(t, h.Push(at(featureBranch, 3), "S", "z", parents))
	got, ok := h.Value("S", []version.Layer{layer(featureBranch, 3), layer(mainBranch, 1)})
	require.True(t, ok)
	assert.Equal(t, "z", got)

	got, ok = h.Value("S", []version.Layer{layer(featureBranch, 2), layer(mainBranch, 1)})
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestNew_CustomEquality(t *testing.T) {
	t.Parallel()
	h := New[int](func(a, b []string) bool { return len(a) == len(b) })
	assert.True(t, h.Push(at(mainBranch, 0), 1, []string{"x"}, nil))
	assert.False(t, h.Push(at(mainBranch, 1), 1, []string{"y"}, nil))
	assert.Equal(t, 1, h.Len())
}

func TestRestore_RebuildsChains(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, string]()
	h.Push(at(mainBranch, 0), "a", "1", nil)
	h.Push(at(mainBranch, 0), "b", "x", nil)
	h.Push(at(mainBranch, 2), "a", "2", nil)
	h.Push(at(featureBranch, 3), "a", "3", []version.Layer{layer(mainBranch, 2)})

	restored := NewComparable[string, string]()
	for _, e := range h.Entries() {
		for i := len(e.Chain) - 1; i >= 0; i-- {
			restored.Restore(e.Branch, e.Key, e.Chain[i].Since, e.Chain[i].Value)
		}
	}
	for _, c := range []struct {
		branch version.Branch
		key    string
	}{{mainBranch, "a"}, {mainBranch, "b"}, {featureBranch, "a"}} {
		assert.Equal(t, project(h.Chain(c.branch, c.key)), project(restored.Chain(c.branch, c.key)))
	}
	assert.Equal(t, h.Len(), restored.Len())
	assert.Panics(t, func() { restored.Restore(mainBranch, "a", 1, "old") })
}

type frame struct {
	value string
	since version.Revision
}

func project(chain []Keyframe[string]) []frame {
	out := make([]frame, len(chain))
	for i, kf := range chain {
		out[i] = frame{kf.Value, kf.Since}
	}
	return out
}

func TestHead(t *testing.T) {
	t.Parallel()
	h := NewComparable[string, int]()
	_, ok := h.Head(mainBranch, "k")
	assert.False(t, ok)
	h.Push(at(mainBranch, 4), "k", 9, nil)
	kf, ok := h.Head(mainBranch, "k")
	require.True(t, ok)
	assert.Equal(t, 9, kf.Value)
	assert.Equal(t, version.Revision(4), kf.Since)
}
