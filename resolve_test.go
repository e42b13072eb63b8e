package biome

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forkedPackage builds P with M.foo on main (revisions 0 and 1) and a
// feature branch forked at main:1 that adds M.bar in revision 2.
func forkedPackage(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:foo", "foo"))}})
	mustUpdate(t, e, Import{Package: "P", Tag: "1.0.0", Graphs: []ModuleGraph{graph("M", fn("s:foo", "foo"))}})
	_, err := e.Fork("P", "main@1", "feature")
	require.NoError(t, err)
	res := mustUpdate(t, e, Import{Package: "P", Branch: "feature", Graphs: []ModuleGraph{
		graph("M", fn("s:foo", "foo"), fn("s:bar", "bar")),
	}})
	require.Equal(t, Version{Branch: 1, Revision: 2}, res.Version)
	return e
}

func symbolTarget(t *testing.T, c *Context, sel Selection) string {
	t.Helper()
	target, ok := sel.One()
	require.True(t, ok, "expected one target, got %d", sel.Len())
	require.Equal(t, TargetSymbol, target.Kind)
	id, ok := c.SymbolID(target.Composite.Base)
	require.True(t, ok)
	return id
}

// ============================================================================
// Fork inheritance
// ============================================================================

func TestResolve_ForkInheritance(t *testing.T) {
	t.Parallel()
	e := forkedPackage(t)

	main, err := e.ContextAt("P", "main@1")
	require.NoError(t, err)
	assert.Equal(t, None, main.Resolve("M.bar", Scope{}, Qualifiers{}).Outcome())
	assert.Equal(t, "s:foo", symbolTarget(t, main, main.Resolve("M.foo", Scope{}, Qualifiers{})))

	feature, err := e.ContextAt("P", "feature@2")
	require.NoError(t, err)
	assert.Equal(t, "s:foo", symbolTarget(t, feature, feature.Resolve("M.foo", Scope{}, Qualifiers{})))
	assert.Equal(t, "s:bar", symbolTarget(t, feature, feature.Resolve("M.bar", Scope{}, Qualifiers{})))
}

func TestResolve_RevisionBeforeSymbolExisted(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	first := mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:foo", "foo"))}})
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:foo", "foo"), fn("s:bar", "bar"))}})

	c, err := e.Context("P", first.Version)
	require.NoError(t, err)
	assert.Equal(t, None, c.Resolve("M.bar", Scope{}, Qualifiers{}).Outcome())

	latest, err := e.ContextAt("P", "")
	require.NoError(t, err)
	assert.Equal(t, One, latest.Resolve("M.bar", Scope{}, Qualifiers{}).Outcome())
}

// ============================================================================
// Modules and scopes
// ============================================================================

func TestResolve_ModulesAndEmptyExpression(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("Core", fn("s:f", "f"))}})
	c, err := e.ContextAt("P", "main")
	require.NoError(t, err)

	sel := c.Resolve("Core", Scope{}, Qualifiers{})
	target, ok := sel.One()
	require.True(t, ok)
	assert.Equal(t, TargetModule, target.Kind)
	name, _ := c.ModuleName(target.Module)
	assert.Equal(t, "Core", name)

	sel = c.Resolve("", Scope{Namespace: target.Module}, Qualifiers{})
	empty, ok := sel.One()
	require.True(t, ok)
	assert.Equal(t, target, empty)
}

func TestResolve_ScopeRelativeLongestPrefixFirst(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M",
		typ("s:Outer", "Outer"),
		typ("s:Outer.Inner", "Outer", "Inner"),
		typ("s:Inner", "Inner"),
	)}})
	c, err := e.ContextAt("P", "main")
	require.NoError(t, err)
	m, ok := c.Module("M")
	require.True(t, ok)

	inOuter := Scope{Namespace: m, Path: []string{"Outer"}}
	assert.Equal(t, "s:Outer.Inner", symbolTarget(t, c, c.Resolve("Inner", inOuter, Qualifiers{})))
	assert.Equal(t, "s:Inner", symbolTarget(t, c, c.Resolve("Inner", Scope{Namespace: m}, Qualifiers{})))
}

func TestResolve_Imports(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	lib := graph("Lib", typ("s:Widget", "Widget"))
	app := graph("App", fn("s:main", "main"))
	app.Dependencies = []string{"Lib"}
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{lib, app}})

	c, err := e.ContextAt("P", "main")
	require.NoError(t, err)
	mainFn, ok := c.SymbolByID("s:main")
	require.True(t, ok)
	scope, ok := c.ScopeOf(mainFn)
	require.True(t, ok)

	assert.Equal(t, "s:Widget", symbolTarget(t, c, c.Resolve("Widget", scope, Qualifiers{})))
}

func TestResolve_FallsBackToShorterSuffixes(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M",
		typ("s:T", "T"),
		fn("s:T.f", "T", "f"),
		fn("s:f", "f"),
	)}})
	c, err := e.ContextAt("P", "main")
	require.NoError(t, err)
	m, ok := c.Module("M")
	require.True(t, ok)
	scope := Scope{Namespace: m}

	assert.Equal(t, "s:T.f", symbolTarget(t, c, c.Resolve("T.f", scope, Qualifiers{})))
	assert.Equal(t, "s:T.f", symbolTarget(t, c, c.Resolve("M/T.f", scope, Qualifiers{})))
	assert.Equal(t, "s:T.f", symbolTarget(t, c, c.Resolve("Outer/T.f", scope, Qualifiers{})))
	assert.Equal(t, "s:T.f", symbolTarget(t, c, c.Resolve("Nope.T.f", scope, Qualifiers{})))
	assert.Equal(t, "s:f", symbolTarget(t, c, c.Resolve("Nope.f", scope, Qualifiers{})))
	assert.Equal(t, None, c.Resolve("Nope.g", scope, Qualifiers{}).Outcome())
}

func TestResolve_ZeroScopeOutsidePinnedPackages(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	mustUpdate(t, e, Import{Package: "X", Graphs: []ModuleGraph{graph("M", fn("s:x.f", "f"))}})
	mustUpdate(t, e, Import{Package: "Y", Graphs: []ModuleGraph{graph("N", fn("s:y.f", "f"))}})

	x, err := e.ContextAt("X", "")
	require.NoError(t, err)
	assert.Equal(t, "s:x.f", symbolTarget(t, x, x.Resolve("f", Scope{}, Qualifiers{})))

	y, err := e.ContextAt("Y", "")
	require.NoError(t, err)
	assert.Equal(t, None, y.Resolve("f", Scope{}, Qualifiers{}).Outcome())
	assert.Equal(t, None, y.Resolve("", Scope{}, Qualifiers{}).Outcome())

	n, ok := y.Module("N")
	require.True(t, ok)
	assert.Equal(t, "s:y.f", symbolTarget(t, y, y.Resolve("f", Scope{Namespace: n}, Qualifiers{})))
}

// ============================================================================
// Disambiguation
// ============================================================================

func overloads(t *testing.T) *Context {
	t.Helper()
	e := newTestEngine(t)
	method := fn("s:T.f(string)", "T", "f")
	method.Kind = "method"
	mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M",
		typ("s:T", "T"),
		fn("s:T.f(int)", "T", "f"),
		method,
	)}})
	c, err := e.ContextAt("P", "main")
	require.NoError(t, err)
	return c
}

func TestResolve_AmbiguousGroupReturnsEveryMember(t *testing.T) {
	t.Parallel()
	c := overloads(t)

	sel := c.Resolve("M/T.f", Scope{}, Qualifiers{})
	assert.Equal(t, Many, sel.Outcome())
	var ids []string
	for _, target := range sel.Targets() {
		id, _ := c.SymbolID(target.Composite.Base)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"s:T.f(int)", "s:T.f(string)"}, ids)
}

func TestResolve_QualifiersNarrow(t *testing.T) {
	t.Parallel()
	c := overloads(t)

	assert.Equal(t, "s:T.f(string)", symbolTarget(t, c, c.Resolve("M/T.f", Scope{}, Qualifiers{Kind: "Method"})))
	assert.Equal(t, "s:T.f(int)", symbolTarget(t, c, c.Resolve("M/T.f", Scope{}, Qualifiers{Base: "s:T.f(int)"})))
	assert.Equal(t, None, c.Resolve("M/T.f", Scope{}, Qualifiers{Base: "s:unknown"}).Outcome())
}

func TestResolve_FlipsOrientationOnce(t *testing.T) {
	t.Parallel()
	c := overloads(t)

	assert.Equal(t, "s:T", symbolTarget(t, c, c.Resolve("M/T", Scope{}, Qualifiers{})))
	assert.Equal(t, "s:T", symbolTarget(t, c, c.Resolve("M.T", Scope{}, Qualifiers{})))
	assert.Equal(t, Many, c.Resolve("M/T/f", Scope{}, Qualifiers{}).Outcome())
	assert.Equal(t, None, c.Resolve("M/T.g", Scope{}, Qualifiers{}).Outcome())
}

// ============================================================================
// Articles
// ============================================================================

func TestResolve_Articles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	g := graph("M", fn("s:f", "f"))
	g.Articles = []ArticleInput{{ID: "a:start", Path: []string{"GettingStarted"}, Title: "Getting Started", Body: "# Hello"}}
	first := mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{g}})
	second := mustUpdate(t, e, Import{Package: "P", Graphs: []ModuleGraph{graph("M", fn("s:f", "f"))}})

	c, err := e.Context("P", first.Version)
	require.NoError(t, err)
	m, _ := c.Module("M")
	target, ok := c.Resolve("GettingStarted", Scope{Namespace: m}, Qualifiers{}).One()
	require.True(t, ok)
	assert.Equal(t, TargetArticle, target.Kind)
	assert.Equal(t, &ArticleBody{Title: "Getting Started", Markdown: "# Hello"}, c.Article(target.Article))
	uri, ok := c.URI(target)
	require.True(t, ok)
	assert.Equal(t, "m/gettingstarted", uri)

	later, err := e.Context("P", second.Version)
	require.NoError(t, err)
	assert.Equal(t, None, later.Resolve("GettingStarted", Scope{Namespace: m}, Qualifiers{}).Outcome())
}

// ============================================================================
// Cross-package features
// ============================================================================

// featurePackages builds package A with Core.Buffer and a protocol P with
// requirement read, and package B whose module Ext surfaces P.read on
// Buffer.
func featurePackages(t *testing.T) (*Engine, *UpdateResult) {
	t.Helper()
	e := newTestEngine(t)
	read := fn("s:P.read", "P", "read")
	read.Kind = "method"
	read.Scope = "s:P"
	mustUpdate(t, e, Import{Package: "A", Graphs: []ModuleGraph{graph("Core",
		typ("s:Buffer", "Buffer"),
		Vertex{ID: "s:P", Path: []string{"P"}, Kind: "protocol"},
		read,
	)}})

	ext := ModuleGraph{
		Module:       "Ext",
		Dependencies: []string{"Core"},
		Edges:        []Edge{{Source: "s:P.read", Target: "s:Buffer", Relation: RelationFeature}},
	}
	res := mustUpdate(t, e, Import{
		Package:      "B",
		Graphs:       []ModuleGraph{ext},
		Dependencies: []DependencyRef{{Package: "A"}},
	})
	return e, res
}

func TestResolve_FeatureFromDependentPackage(t *testing.T) {
	t.Parallel()
	e, res := featurePackages(t)
	assert.Zero(t, res.DroppedEdges)

	c, err := e.Context("B", res.Version)
	require.NoError(t, err)

	sel := c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{})
	target, ok := sel.One()
	require.True(t, ok)
	assert.False(t, target.Composite.IsNatural())
	host, ok := target.Composite.Host()
	require.True(t, ok)
	hostID, _ := c.SymbolID(host)
	assert.Equal(t, "s:Buffer", hostID)
	assert.Equal(t, Transitive, c.Reachability(target.Composite))

	uri, ok := c.URI(target)
	require.True(t, ok)
	assert.Equal(t, "core/buffer.read", uri)

	buffer, ok := c.SymbolByID("s:Buffer")
	require.True(t, ok)
	assert.Equal(t, Explicit, c.Reachability(Natural(buffer)))

	// From A alone the feature is invisible.
	a, err := e.ContextAt("A", "")
	require.NoError(t, err)
	assert.Equal(t, None, a.Resolve("Core/Buffer.read", Scope{}, Qualifiers{}).Outcome())
	assert.Equal(t, Unreachable, a.Reachability(target.Composite))
}

func TestResolve_HostQualifierSelectsFeature(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	natural := fn("s:Buffer.read", "Buffer", "read")
	natural.Scope = "s:Buffer"
	read := fn("s:P.read", "P", "read")
	read.Kind = "method"
	read.Scope = "s:P"
	mustUpdate(t, e, Import{Package: "A", Graphs: []ModuleGraph{graph("Core",
		typ("s:Buffer", "Buffer"),
		natural,
		Vertex{ID: "s:P", Path: []string{"P"}, Kind: "protocol"},
		read,
	)}})
	res := mustUpdate(t, e, Import{
		Package: "B",
		Graphs: []ModuleGraph{{
			Module:       "Ext",
			Dependencies: []string{"Core"},
			Edges:        []Edge{{Source: "s:P.read", Target: "s:Buffer", Relation: RelationFeature}},
		}},
		Dependencies: []DependencyRef{{Package: "A"}},
	})
	require.Zero(t, res.DroppedEdges)

	c, err := e.Context("B", res.Version)
	require.NoError(t, err)

	sel := c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{})
	require.Equal(t, Many, sel.Outcome())
	assert.Equal(t, 2, sel.Len())

	target, ok := c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{Host: "s:Buffer"}).One()
	require.True(t, ok)
	assert.False(t, target.Composite.IsNatural())
	baseID, _ := c.SymbolID(target.Composite.Base)
	assert.Equal(t, "s:P.read", baseID)

	assert.Equal(t, "s:Buffer.read", symbolTarget(t, c, c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{Base: "s:Buffer.read"})))
	assert.Equal(t, None, c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{Host: "s:unknown"}).Outcome())
}

func TestResolve_FeatureDisappearsWithItsModule(t *testing.T) {
	t.Parallel()
	e, _ := featurePackages(t)

	res := mustUpdate(t, e, Import{
		Package:      "B",
		Graphs:       []ModuleGraph{graph("Other", fn("s:x", "x"))},
		Dependencies: []DependencyRef{{Package: "A"}},
	})
	c, err := e.Context("B", res.Version)
	require.NoError(t, err)
	assert.Equal(t, None, c.Resolve("Core/Buffer.read", Scope{}, Qualifiers{}).Outcome())
}

func TestContext_PinsAndConsumers(t *testing.T) {
	t.Parallel()
	e, res := featurePackages(t)

	c, err := e.Context("B", res.Version)
	require.NoError(t, err)
	a, _ := e.Package("A")
	aLatest, err := a.Latest("main")
	require.NoError(t, err)
	assert.Equal(t, Pins{a.Index: aLatest}, c.Pins())

	b, _ := e.Package("B")
	assert.Equal(t, []Consumer{{Package: b.Index, Version: res.Version}}, a.Consumers(aLatest))
}

// ============================================================================
// Parallel resolution
// ============================================================================

func TestResolveAll(t *testing.T) {
	t.Parallel()
	c := overloads(t)
	c.SetParallelism(2)

	links := []Link{
		{Expression: "M/T"},
		{Expression: "M/T.f"},
		{Expression: "M/T.f", Qualifiers: Qualifiers{Kind: "method"}},
		{Expression: "M/Nope"},
	}
	sels, err := c.ResolveAll(context.Background(), links)
	require.NoError(t, err)
	require.Len(t, sels, len(links))
	assert.Equal(t, One, sels[0].Outcome())
	assert.Equal(t, Many, sels[1].Outcome())
	assert.Equal(t, One, sels[2].Outcome())
	assert.Equal(t, None, sels[3].Outcome())
}

func TestResolveAll_CancelledContext(t *testing.T) {
	t.Parallel()
	c := overloads(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ResolveAll(ctx, []Link{{Expression: "M/T"}})
	assert.ErrorIs(t, err, context.Canceled)
}
