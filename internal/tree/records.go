package tree

import (
	"github.com/jward/biome/internal/arena"
	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/version"
)

// Module is the buffer record of a module. Its external id is its name.
type Module struct {
	Name string
}

// Symbol is the buffer record of a symbol. The path and namespace are part
// of the symbol's identity; everything that can change between revisions
// lives in field histories instead.
type Symbol struct {
	Path      []string
	Kind      string
	Namespace arena.ModuleIndex
	Route     route.Route
}

// Name returns the last path component.
func (s Symbol) Name() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[len(s.Path)-1]
}

// Article is the buffer record of a free-standing documentation page.
type Article struct {
	Path  []string
	Route route.Route
}

type (
	ModuleBuffer  = arena.Buffer[string, version.Package, Module]
	SymbolBuffer  = arena.Buffer[string, arena.ModuleIndex, Symbol]
	ArticleBuffer = arena.Buffer[string, arena.ModuleIndex, Article]

	ModuleSlice  = arena.Slice[string, version.Package, Module]
	SymbolSlice  = arena.Slice[string, arena.ModuleIndex, Symbol]
	ArticleSlice = arena.Slice[string, arena.ModuleIndex, Article]

	ModuleRecord  = arena.Record[string, version.Package, Module]
	SymbolRecord  = arena.Record[string, arena.ModuleIndex, Symbol]
	ArticleRecord = arena.Record[string, arena.ModuleIndex, Article]
)
