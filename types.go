package biome

import (
	"github.com/jward/biome/internal/arena"
	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/tree"
	"github.com/jward/biome/internal/version"
)

// Public type aliases for internal types used across the API. These are Go
// type aliases (=), identical to the internal types at compile time.

type PackageIndex = version.Package
type BranchID = version.Branch
type Revision = version.Revision
type Version = version.Version
type Layer = version.Layer
type Pins = version.Pins
type Tag = version.Tag

type ModuleIndex = arena.ModuleIndex
type SymbolIndex = arena.SymbolIndex
type ArticleIndex = arena.ArticleIndex

type Route = route.Route
type Orientation = route.Orientation
type Composite = route.Composite
type Diacritic = route.Diacritic

type Branch = tree.Branch
type RevisionInfo = tree.Revision
type Trunk = tree.Trunk
type SymbolRecord = tree.Symbol

// Orientations.
const (
	TypeLike  = route.TypeLike
	ValueLike = route.ValueLike
)

// ParseTag classifies a revision label as semantic or opaque.
func ParseTag(s string) Tag { return version.ParseTag(s) }

// Natural returns the composite for a symbol in its own declaration.
func Natural(base SymbolIndex) Composite { return route.Natural(base) }

// Feature returns the composite for base surfacing on host, as declared by
// culture.
func Feature(base, host SymbolIndex, culture ModuleIndex) Composite {
	return route.Feature(base, host, culture)
}
