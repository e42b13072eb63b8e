package tree

import (
	"iter"

	"github.com/jward/biome/internal/arena"
	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/version"
)

// Epoch is one frozen layer of a trunk: a branch's buffers cut at Limit.
type Epoch struct {
	Branch   *Branch
	Limit    version.Revision
	Modules  ModuleSlice
	Symbols  SymbolSlice
	Articles ArticleSlice
}

// Layer returns the history layer matching the epoch.
func (e Epoch) Layer() version.Layer {
	return version.Layer{Branch: e.Branch.ID, Limit: e.Limit}
}

// Trunk is the chain of epochs visible from one version, newest first.
// Offsets never overlap between epochs of one trunk.
type Trunk struct {
	Package version.Package
	Version version.Version
	Epochs  []Epoch
}

// Layers returns the history layers of the trunk, newest first.
func (t Trunk) Layers() []version.Layer {
	layers := make([]version.Layer, len(t.Epochs))
	for i, e := range t.Epochs {
		layers[i] = e.Layer()
	}
	return layers
}

// FindModule returns the position of the module named id.
func (t Trunk) FindModule(id string) (arena.Position[version.Package], bool) {
	for _, e := range t.Epochs {
		if index, ok := e.Modules.Lookup(id); ok {
			return arena.At(index, e.Branch.ID), true
		}
	}
	return arena.Position[version.Package]{}, false
}

// FindSymbol returns the position of the symbol with external id.
func (t Trunk) FindSymbol(id string) (arena.Position[arena.ModuleIndex], bool) {
	for _, e := range t.Epochs {
		if index, ok := e.Symbols.Lookup(id); ok {
			return arena.At(index, e.Branch.ID), true
		}
	}
	return arena.Position[arena.ModuleIndex]{}, false
}

// FindArticle returns the position of the article with external id.
func (t Trunk) FindArticle(id string) (arena.Position[arena.ModuleIndex], bool) {
	for _, e := range t.Epochs {
		if index, ok := e.Articles.Lookup(id); ok {
			return arena.At(index, e.Branch.ID), true
		}
	}
	return arena.Position[arena.ModuleIndex]{}, false
}

// Module returns the record behind a module index.
func (t Trunk) Module(index arena.ModuleIndex) (ModuleRecord, bool) {
	if index.Culture != t.Package {
		return ModuleRecord{}, false
	}
	for _, e := range t.Epochs {
		if e.Modules.Contains(index.Offset) {
			return e.Modules.At(index), true
		}
	}
	return ModuleRecord{}, false
}

// Symbol returns the record behind a symbol index.
func (t Trunk) Symbol(index arena.SymbolIndex) (SymbolRecord, bool) {
	if index.Culture.Culture != t.Package {
		return SymbolRecord{}, false
	}
	for _, e := range t.Epochs {
		if e.Symbols.Contains(index.Offset) {
			return e.Symbols.At(index), true
		}
	}
	return SymbolRecord{}, false
}

// Article returns the record behind an article index.
func (t Trunk) Article(index arena.ArticleIndex) (ArticleRecord, bool) {
	if index.Culture.Culture != t.Package {
		return ArticleRecord{}, false
	}
	for _, e := range t.Epochs {
		if e.Articles.Contains(index.Offset) {
			return e.Articles.At(index), true
		}
	}
	return ArticleRecord{}, false
}

// Routes merges the composites claimed under r in every epoch, each
// filtered to the epoch's limit. Newer epochs contribute first.
func (t Trunk) Routes(r route.Route) route.Group {
	var g route.Group
	for _, e := range t.Epochs {
		g = g.Merge(e.Branch.Routes.Select(r, e.Limit))
	}
	return g
}

// ArticleRoute returns the article claimed under r in the newest epoch
// that has one.
func (t Trunk) ArticleRoute(r route.Route) (arena.ArticleIndex, bool) {
	for _, e := range t.Epochs {
		if a, ok := e.Branch.Routes.Article(r, e.Limit); ok {
			return a, true
		}
	}
	return arena.ArticleIndex{}, false
}

// Modules iterates every module visible through the trunk, oldest first.
func (t Trunk) Modules() iter.Seq2[arena.ModuleIndex, ModuleRecord] {
	return func(yield func(arena.ModuleIndex, ModuleRecord) bool) {
		for i := len(t.Epochs) - 1; i >= 0; i-- {
			for index, r := range t.Epochs[i].Modules.All() {
				if !yield(index, r) {
					return
				}
			}
		}
	}
}

// Symbols iterates every symbol visible through the trunk, oldest first.
func (t Trunk) Symbols() iter.Seq2[arena.SymbolIndex, SymbolRecord] {
	return func(yield func(arena.SymbolIndex, SymbolRecord) bool) {
		for i := len(t.Epochs) - 1; i >= 0; i-- {
			for index, r := range t.Epochs[i].Symbols.All() {
				if !yield(index, r) {
					return
				}
			}
		}
	}
}

// Articles iterates every article visible through the trunk, oldest first.
func (t Trunk) Articles() iter.Seq2[arena.ArticleIndex, ArticleRecord] {
	return func(yield func(arena.ArticleIndex, ArticleRecord) bool) {
		for i := len(t.Epochs) - 1; i >= 0; i-- {
			for index, r := range t.Epochs[i].Articles.All() {
				if !yield(index, r) {
					return
				}
			}
		}
	}
}

// Head is the writer's view of a branch under construction. Lookups try the
// live buffers first and then fall through to the frozen parent trunk.
type Head struct {
	Package version.Package
	Branch  *Branch
	Parent  Trunk
}

// Parents returns the history layers below the branch.
func (h Head) Parents() []version.Layer {
	return h.Parent.Layers()
}

// FindModule returns the index of the module named id.
func (h Head) FindModule(id string) (arena.ModuleIndex, bool) {
	if index, ok := h.Branch.Modules.Lookup(id); ok {
		return index, true
	}
	pos, ok := h.Parent.FindModule(id)
	return pos.Index, ok
}

// FindSymbol returns the index of the symbol with external id.
func (h Head) FindSymbol(id string) (arena.SymbolIndex, bool) {
	if index, ok := h.Branch.Symbols.Lookup(id); ok {
		return index, true
	}
	pos, ok := h.Parent.FindSymbol(id)
	return pos.Index, ok
}

// FindArticle returns the index of the article with external id.
func (h Head) FindArticle(id string) (arena.ArticleIndex, bool) {
	if index, ok := h.Branch.Articles.Lookup(id); ok {
		return index, true
	}
	pos, ok := h.Parent.FindArticle(id)
	return pos.Index, ok
}

// Symbol returns the record behind a symbol index.
func (h Head) Symbol(index arena.SymbolIndex) (SymbolRecord, bool) {
	if index.Culture.Culture != h.Package {
		return SymbolRecord{}, false
	}
	if h.Branch.Symbols.Contains(index.Offset) {
		return h.Branch.Symbols.At(index), true
	}
	return h.Parent.Symbol(index)
}

// Module returns the record behind a module index.
func (h Head) Module(index arena.ModuleIndex) (ModuleRecord, bool) {
	if index.Culture != h.Package {
		return ModuleRecord{}, false
	}
	if h.Branch.Modules.Contains(index.Offset) {
		return h.Branch.Modules.At(index), true
	}
	return h.Parent.Module(index)
}

// Modules iterates the modules visible to the writer, oldest first.
func (h Head) Modules() iter.Seq2[arena.ModuleIndex, ModuleRecord] {
	return func(yield func(arena.ModuleIndex, ModuleRecord) bool) {
		for index, r := range h.Parent.Modules() {
			if !yield(index, r) {
				return
			}
		}
		for index, r := range h.Branch.Modules.Slice(h.Branch.Modules.End()).All() {
			if !yield(index, r) {
				return
			}
		}
	}
}

// Symbols iterates the symbols visible to the writer, oldest first.
func (h Head) Symbols() iter.Seq2[arena.SymbolIndex, SymbolRecord] {
	return func(yield func(arena.SymbolIndex, SymbolRecord) bool) {
		for index, r := range h.Parent.Symbols() {
			if !yield(index, r) {
				return
			}
		}
		for index, r := range h.Branch.Symbols.Slice(h.Branch.Symbols.End()).All() {
			if !yield(index, r) {
				return
			}
		}
	}
}

// Articles iterates the articles visible to the writer, oldest first.
func (h Head) Articles() iter.Seq2[arena.ArticleIndex, ArticleRecord] {
	return func(yield func(arena.ArticleIndex, ArticleRecord) bool) {
		for index, r := range h.Parent.Articles() {
			if !yield(index, r) {
				return
			}
		}
		for index, r := range h.Branch.Articles.Slice(h.Branch.Articles.End()).All() {
			if !yield(index, r) {
				return
			}
		}
	}
}
