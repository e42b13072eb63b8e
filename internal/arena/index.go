// Package arena implements append-only, per-branch entity buffers. Entities
// are referenced only through opaque indices; nothing stored in an arena is
// ever removed or rewritten.
package arena

import (
	"fmt"

	"github.com/jward/biome/internal/version"
)

// Index is the permanent identifier of an entity: the enclosing scope it
// was declared in, and its offset in the lineage's buffer for that kind.
type Index[C comparable] struct {
	Culture C
	Offset  uint32
}

func (i Index[C]) String() string {
	return fmt.Sprintf("%v#%d", i.Culture, i.Offset)
}

// Position is an index qualified by the branch whose buffer holds it. A
// position recorded on an ancestor branch stays valid from every
// descendant.
type Position[C comparable] struct {
	Index[C]
	Branch version.Branch
}

// At qualifies an index with the branch that stores it.
func At[C comparable](index Index[C], branch version.Branch) Position[C] {
	return Position[C]{Index: index, Branch: branch}
}

// ModuleIndex addresses a module; its culture is the owning package.
type ModuleIndex = Index[version.Package]

// SymbolIndex addresses a symbol; its culture is the declaring module.
type SymbolIndex = Index[ModuleIndex]

// ArticleIndex addresses an article; its culture is the owning module.
type ArticleIndex = Index[ModuleIndex]

// Package returns the package a module index belongs to.
func Package(m ModuleIndex) version.Package { return m.Culture }
