package version

import (
	"fmt"
	"strconv"
	"strings"
)

type tagKind uint8

const (
	untagged tagKind = iota
	semantic
	opaque
)

// Tag labels a revision. A tag is either semantic (major.minor.patch with an
// optional fourth edition component) or an opaque toolchain/build identifier.
// The zero Tag means the revision carries no tag.
type Tag struct {
	kind    tagKind
	Major   uint32
	Minor   uint32
	Patch   uint32
	Edition uint32
	edition bool
	text    string
}

// ParseTag classifies s. It never fails: anything that is not a semantic
// version is kept as an opaque identifier.
func ParseTag(s string) Tag {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tag{}
	}
	if t, ok := parseSemantic(s); ok {
		return t
	}
	return Tag{kind: opaque, text: s}
}

// Semantic builds a semantic tag.
func Semantic(major, minor, patch uint32) Tag {
	return Tag{kind: semantic, Major: major, Minor: minor, Patch: patch}
}

func parseSemantic(s string) (Tag, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Tag{}, false
	}
	var nums [4]uint32
	for i, part := range parts {
		if part == "" {
			return Tag{}, false
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return Tag{}, false
		}
		nums[i] = uint32(n)
	}
	return Tag{
		kind:    semantic,
		Major:   nums[0],
		Minor:   nums[1],
		Patch:   nums[2],
		Edition: nums[3],
		edition: len(parts) == 4,
	}, true
}

// IsZero reports whether the tag is absent.
func (t Tag) IsZero() bool { return t.kind == untagged }

// IsSemantic reports whether the tag is a semantic version.
func (t Tag) IsSemantic() bool { return t.kind == semantic }

func (t Tag) String() string {
	switch t.kind {
	case semantic:
		if t.edition {
			return fmt.Sprintf("%d.%d.%d.%d", t.Major, t.Minor, t.Patch, t.Edition)
		}
		return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
	case opaque:
		return t.text
	default:
		return ""
	}
}

// Compare orders two semantic tags. The second result is false when either
// tag is not semantic; opaque tags are only ordered by commit order.
func (t Tag) Compare(other Tag) (int, bool) {
	if t.kind != semantic || other.kind != semantic {
		return 0, false
	}
	a := [4]uint32{t.Major, t.Minor, t.Patch, t.Edition}
	b := [4]uint32{other.Major, other.Minor, other.Patch, other.Edition}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1, true
		case a[i] > b[i]:
			return 1, true
		}
	}
	return 0, true
}
