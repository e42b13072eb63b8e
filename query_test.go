package biome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Pagination{Offset: 0, Limit: defaultLimit}, Pagination{Offset: -3}.normalize())
	assert.Equal(t, Pagination{Offset: 2, Limit: maxLimit}, Pagination{Offset: 2, Limit: 9000}.normalize())
}

// ============================================================================
// Branches and revisions
// ============================================================================

func TestQuery_Branches(t *testing.T) {
	t.Parallel()
	e := forkedPackage(t)

	branches, err := e.Query().Branches("P")
	require.NoError(t, err)
	require.Len(t, branches, 2)

	assert.Equal(t, "main", branches[0].Name)
	assert.Nil(t, branches[0].Fork)
	assert.Equal(t, 2, branches[0].Revisions)
	require.NotNil(t, branches[0].Latest)
	assert.Equal(t, "1.0.0", branches[0].Latest.Tag.String())

	assert.Equal(t, "feature", branches[1].Name)
	assert.Equal(t, &Version{Branch: 0, Revision: 1}, branches[1].Fork)
	assert.Equal(t, Revision(2), branches[1].First)

	_, err = e.Query().Branches("nope")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestQuery_Revisions(t *testing.T) {
	t.Parallel()
	e := forkedPackage(t)

	page, err := e.Query().Revisions("P", "main", Pagination{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, Revision(1), page.Items[0].Number, "newest first")

	page, err = e.Query().Revisions("P", "main", Pagination{Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, Revision(0), page.Items[0].Number)

	_, err = e.Query().Revisions("P", "nope", Pagination{})
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

// ============================================================================
// Symbols
// ============================================================================

func TestQuery_Symbols(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{
		graph("A", typ("s:Zed", "Zed"), fn("s:Zed.go", "Zed", "go")),
		graph("B", fn("s:alpha", "alpha")),
	}})
	c, err := e.ContextAt("P", "")
	require.NoError(t, err)
	q := e.Query()

	all := q.Symbols(c, SymbolFilter{}, Sort{}, Pagination{})
	assert.Equal(t, 3, all.TotalCount)
	uris := make([]string, len(all.Items))
	for i, s := range all.Items {
		uris[i] = s.URI
	}
	assert.Equal(t, []string{"a/zed", "a/zed.go", "b.alpha"}, uris)

	funcs := q.Symbols(c, SymbolFilter{Kinds: []string{"FUNC"}}, Sort{Field: SortByName, Order: Desc}, Pagination{})
	require.Len(t, funcs.Items, 2)
	assert.Equal(t, "s:alpha", funcs.Items[0].ID)

	module := "A"
	inZed := q.Symbols(c, SymbolFilter{Module: &module, PathPrefix: []string{"zed"}}, Sort{Field: SortByKind}, Pagination{})
	require.Len(t, inZed.Items, 2)
	assert.Equal(t, "func", inZed.Items[0].Kind)
	assert.Equal(t, "struct", inZed.Items[1].Kind)
}

// ============================================================================
// History
// ============================================================================

func TestQuery_SymbolHistoryFollowsTheTrunk(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	v := fn("s:f", "f")
	v.Documentation = "one"
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", v)}})
	v.Documentation = "two"
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", v)}})
	_, err := e.Fork("P", "main@0", "fix")
	require.NoError(t, err)
	v.Declaration = "func f(x int)"
	fix := mustUpdate(t, e, Import{Package: "P", Branch: "fix", Graphs: []ModuleGraph{graph("M", v)}})

	changes, err := e.Query().SymbolHistory("P", fix.Version, "s:f")
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{Version: Version{Branch: 0, Revision: 0}, Field: FieldSymbol, Value: "added"},
		{Version: Version{Branch: 0, Revision: 0}, Field: FieldDeclaration, Value: "func f()"},
		{Version: Version{Branch: 0, Revision: 0}, Field: FieldDocumentation, Value: "one"},
		{Version: Version{Branch: 1, Revision: 1}, Field: FieldDeclaration, Value: "func f(x int)"},
		{Version: Version{Branch: 1, Revision: 1}, Field: FieldDocumentation, Value: "two"},
	}, changes, "main's second revision is not on the fix trunk")

	none, err := e.Query().SymbolHistory("P", fix.Version, "s:unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}
