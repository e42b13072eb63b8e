package route

import (
	"fmt"

	"github.com/jward/biome/internal/arena"
)

// Orientation records how a path's last component is addressed: type-like
// paths print with '/', value-like paths with '.'.
type Orientation uint8

const (
	TypeLike Orientation = iota
	ValueLike
)

// Flip returns the other orientation.
func (o Orientation) Flip() Orientation {
	if o == TypeLike {
		return ValueLike
	}
	return TypeLike
}

// Separator returns the character printed before a last component with
// this orientation.
func (o Orientation) Separator() string {
	if o == ValueLike {
		return "."
	}
	return "/"
}

func (o Orientation) String() string {
	if o == ValueLike {
		return "value"
	}
	return "type"
}

// Leaf is a stem shifted left by one with the orientation in the low bit.
type Leaf uint32

// NewLeaf packs a stem and an orientation.
func NewLeaf(stem Stem, o Orientation) Leaf {
	if stem > MaxStem {
		panic(fmt.Sprintf("route: stem %d exceeds 31 bits", stem))
	}
	return Leaf(uint32(stem)<<1 | uint32(o))
}

// Stem returns the interned last component.
func (l Leaf) Stem() Stem { return Stem(uint32(l) >> 1) }

// Orientation returns the orientation bit.
func (l Leaf) Orientation() Orientation { return Orientation(uint32(l) & 1) }

// Flipped returns the same component with the other orientation.
func (l Leaf) Flipped() Leaf { return NewLeaf(l.Stem(), l.Orientation().Flip()) }

// Route is the documentation address of an entity: the namespace module,
// the interned path prefix, and the interned last component.
type Route struct {
	Module arena.ModuleIndex
	Stem   Stem
	Leaf   Leaf
}

// Flipped returns the route with the leaf orientation flipped.
func (r Route) Flipped() Route {
	return Route{Module: r.Module, Stem: r.Stem, Leaf: r.Leaf.Flipped()}
}

// Tuple returns the route as four small integers: package, module offset,
// stem and leaf.
func (r Route) Tuple() (uint16, uint32, uint32, uint32) {
	return uint16(r.Module.Culture), r.Module.Offset, uint32(r.Stem), uint32(r.Leaf)
}

func (r Route) String() string {
	return fmt.Sprintf("%d.%d/%d/%d", r.Module.Culture, r.Module.Offset, r.Stem, r.Leaf)
}

// Intern registers path under module. The path must not be empty.
func (in *Interner) Intern(module arena.ModuleIndex, path []string, o Orientation) Route {
	if len(path) == 0 {
		panic("route: cannot intern an empty path")
	}
	last := len(path) - 1
	return Route{
		Module: module,
		Stem:   in.Register(path[:last]...),
		Leaf:   NewLeaf(in.Register(path[last]), o),
	}
}

// Find builds the route for path under module without registering. It
// fails when either half of the path was never interned.
func (in *Interner) Find(module arena.ModuleIndex, path []string, o Orientation) (Route, bool) {
	if len(path) == 0 {
		return Route{}, false
	}
	last := len(path) - 1
	stem, ok := in.Lookup(path[:last]...)
	if !ok {
		return Route{}, false
	}
	leaf, ok := in.Lookup(path[last])
	if !ok {
		return Route{}, false
	}
	return Route{Module: module, Stem: stem, Leaf: NewLeaf(leaf, o)}, true
}
