package biome

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/biome/internal/config"
)

func openTestEngine(t *testing.T, path string) *Engine {
	t.Helper()
	e, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

// populate builds two packages: A on main with a tag and a feature branch,
// and B pinning A with a feature contribution, documentation and an
// article.
func populate(t *testing.T, e *Engine) {
	t.Helper()
	read := fn("s:P.read", "P", "read")
	read.Kind = "method"
	read.Scope = "s:P"
	read.Documentation = "Reads bytes."
	core := graph("Core",
		typ("s:Buffer", "Buffer"),
		Vertex{ID: "s:P", Path: []string{"P"}, Kind: "protocol"},
		read,
	)
	core.Edges = []Edge{{Source: "s:Buffer", Target: "s:P", Relation: RelationConformance}}
	mustUpdate(t, e, Import{Package: "A", Tag: "1.0.0", Graphs: []ModuleGraph{core}})

	read.Documentation = "Reads bytes from the buffer."
	core.Vertices[2] = read
	mustUpdate(t, e, Import{Package: "A", Tag: "1.1.0", Graphs: []ModuleGraph{core}})

	_, err := e.Fork("A", "1.0.0", "legacy")
	require.NoError(t, err)
	mustUpdate(t, e, Import{Package: "A", Branch: "legacy", Graphs: []ModuleGraph{
		graph("Core", typ("s:Buffer", "Buffer"), fn("s:old", "old")),
	}})

	ext := ModuleGraph{
		Module:       "Ext",
		Dependencies: []string{"Core"},
		Edges:        []Edge{{Source: "s:P.read", Target: "s:Buffer", Relation: RelationFeature}},
		Articles:     []ArticleInput{{ID: "a:guide", Path: []string{"Guide"}, Title: "Guide", Body: "text"}},
	}
	mustUpdate(t, e, Import{Package: "B", Graphs: []ModuleGraph{ext}, Dependencies: []DependencyRef{{Package: "A", Ref: "1.1.0"}}})
}

// ============================================================================
// Round trip
// ============================================================================

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "biome.db")

	e := openTestEngine(t, path)
	populate(t, e)
	id, err := e.Save()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, e.Close())

	loaded := openTestEngine(t, path)
	defer loaded.Close()
	require.Len(t, loaded.Packages(), 2)

	a, err := loaded.Package("A")
	require.NoError(t, err)
	assert.Equal(t, map[string]Version{
		"1.0.0": {Branch: 0, Revision: 0},
		"1.1.0": {Branch: 0, Revision: 1},
	}, a.Tags())
	require.Len(t, a.Branches(), 2)
	legacy := a.Branches()[1]
	assert.Equal(t, "legacy", legacy.Name)
	assert.Equal(t, &Version{Branch: 0, Revision: 0}, legacy.Fork)

	// History: documentation changed between the tags.
	v0, err := loaded.ContextAt("A", "1.0.0")
	require.NoError(t, err)
	v1, err := loaded.ContextAt("A", "1.1.0")
	require.NoError(t, err)
	readIndex, ok := v1.SymbolByID("s:P.read")
	require.True(t, ok)
	doc, _ := v0.Documentation(readIndex)
	assert.Equal(t, "Reads bytes.", doc)
	doc, _ = v1.Documentation(readIndex)
	assert.Equal(t, "Reads bytes from the buffer.", doc)

	role := v1.SymbolMetadata(readIndex).Role
	assert.Equal(t, RoleMember, role.Kind())
	buffer, _ := v1.SymbolByID("s:Buffer")
	protocol, _ := v1.SymbolByID("s:P")
	assert.Equal(t, []SymbolIndex{protocol}, v1.SymbolMetadata(buffer).Conformances)

	// The legacy branch dropped P and kept its own symbol.
	old, err := loaded.ContextAt("A", "legacy")
	require.NoError(t, err)
	_, ok = old.SymbolByID("s:P")
	assert.False(t, ok)
	_, ok = old.SymbolByID("s:old")
	assert.True(t, ok)

	// Cross-package resolution, reachability, articles and consumers.
	b, err := loaded.ContextAt("B", "")
	require.NoError(t, err)
	sel := b.Resolve("Core/Buffer.read", Scope{}, Qualifiers{})
	target, ok := sel.One()
	require.True(t, ok)
	assert.Equal(t, Transitive, b.Reachability(target.Composite))

	ext, ok := b.Module("Ext")
	require.True(t, ok)
	article, ok := b.Resolve("Guide", Scope{Namespace: ext}, Qualifiers{}).One()
	require.True(t, ok)
	assert.Equal(t, "Guide", b.Article(article.Article).Title)

	bPkg, _ := loaded.Package("B")
	assert.Equal(t, []Consumer{{Package: bPkg.Index, Version: b.Version()}}, a.Consumers(Version{Branch: 0, Revision: 1}))
}

func TestSaveLoad_WritesContinueAfterLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "biome.db")

	e := openTestEngine(t, path)
	populate(t, e)
	_, err := e.Save()
	require.NoError(t, err)
	require.NoError(t, e.Close())

	loaded := openTestEngine(t, path)
	defer loaded.Close()

	// An identical import is recognised after the reload.
	read := fn("s:P.read", "P", "read")
	read.Kind = "method"
	read.Scope = "s:P"
	read.Documentation = "Reads bytes from the buffer."
	core := graph("Core",
		typ("s:Buffer", "Buffer"),
		Vertex{ID: "s:P", Path: []string{"P"}, Kind: "protocol"},
		read,
	)
	core.Edges = []Edge{{Source: "s:Buffer", Target: "s:P", Relation: RelationConformance}}
	dup := mustUpdate(t, loaded, Import{Package: "A", Tag: "1.1.0", Graphs: []ModuleGraph{core}})
	assert.True(t, dup.Duplicate)

	core.Vertices = append(core.Vertices, fn("s:new", "new"))
	res := mustUpdate(t, loaded, Import{Package: "A", Tag: "1.2.0", Graphs: []ModuleGraph{core}})
	assert.Equal(t, Version{Branch: 0, Revision: 2}, res.Version)
	assert.Equal(t, 1, res.NewSymbols)
	assert.Equal(t, 3, res.Keyframes, "only the new symbol's fields are recorded")

	c, err := loaded.Context("A", res.Version)
	require.NoError(t, err)
	assert.Equal(t, One, c.Resolve("Core.new", Scope{}, Qualifiers{}).Outcome())
	assert.Equal(t, One, c.Resolve("Core/P.read", Scope{}, Qualifiers{}).Outcome())
}

func TestSave_PrunesOldSnapshots(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "biome.db")
	e, err := Open(path,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithConfig(&config.Config{Store: config.StoreConfig{KeepSnapshots: 2}}),
	)
	require.NoError(t, err)
	defer e.Close()

	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:f", "f"))}})
	for range 4 {
		_, err := e.Save()
		require.NoError(t, err)
	}
	infos, err := e.store.ListSnapshots()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestSave_BusyBranch(t *testing.T) {
	t.Parallel()
	e := openTestEngine(t, filepath.Join(t.TempDir(), "biome.db"))
	defer e.Close()
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:f", "f"))}})

	p, _ := e.Package("P")
	b, _ := p.Branch("main")
	require.True(t, b.Acquire())
	_, err := e.Save()
	assert.ErrorIs(t, err, ErrBranchBusy)
	b.Release()

	_, err = e.Save()
	assert.NoError(t, err)
}
