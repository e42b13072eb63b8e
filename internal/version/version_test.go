package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag_Semantic(t *testing.T) {
	t.Parallel()
	tag := ParseTag("1.2.3")
	require.True(t, tag.IsSemantic())
	assert.Equal(t, uint32(1), tag.Major)
	assert.Equal(t, uint32(2), tag.Minor)
	assert.Equal(t, uint32(3), tag.Patch)
	assert.Equal(t, "1.2.3", tag.String())
}

func TestParseTag_Edition(t *testing.T) {
	t.Parallel()
	tag := ParseTag("5.7.0.1")
	require.True(t, tag.IsSemantic())
	assert.Equal(t, uint32(1), tag.Edition)
	assert.Equal(t, "5.7.0.1", tag.String())
}

func TestParseTag_Opaque(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"swift-5.7-RELEASE", "nightly", "1.2", "1.2.x", "1..3"} {
		tag := ParseTag(s)
		assert.False(t, tag.IsSemantic(), s)
		assert.False(t, tag.IsZero(), s)
		assert.Equal(t, s, tag.String())
	}
}

func TestParseTag_Empty(t *testing.T) {
	t.Parallel()
	assert.True(t, ParseTag("  ").IsZero())
	assert.Equal(t, Tag{}, ParseTag(""))
}

func TestTag_Compare(t *testing.T) {
	t.Parallel()
	c, ok := ParseTag("1.2.3").Compare(ParseTag("1.10.0"))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = ParseTag("1.2.3.1").Compare(ParseTag("1.2.3"))
	require.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Semantic(2, 0, 0).Compare(ParseTag("2.0.0"))
	require.True(t, ok)
	assert.Equal(t, 0, c)

	_, ok = ParseTag("nightly").Compare(ParseTag("1.0.0"))
	assert.False(t, ok)
}

func TestTag_UsableAsMapKey(t *testing.T) {
	t.Parallel()
	m := map[Tag]int{ParseTag("1.0.0"): 1, ParseTag("nightly"): 2}
	assert.Equal(t, 1, m[Semantic(1, 0, 0)])
	assert.Equal(t, 2, m[ParseTag("nightly")])
}

func TestLayer_Clamp(t *testing.T) {
	t.Parallel()
	l := Layer{Branch: 0, Limit: 4}
	assert.Equal(t, Revision(4), l.Clamp(9))
	assert.Equal(t, Revision(2), l.Clamp(2))
}

func TestPins_CloneAndEqual(t *testing.T) {
	t.Parallel()
	p := Pins{2: {Branch: 0, Revision: 1}, 1: {Branch: 1, Revision: 3}}
	c := p.Clone()
	assert.True(t, p.Equal(c))
	c[3] = Version{}
	assert.False(t, p.Equal(c))
	assert.Equal(t, []Package{1, 2}, p.Packages())

	var nilPins Pins
	assert.Empty(t, nilPins.Clone())
}
