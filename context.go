package biome

import (
	"fmt"
	"strings"

	"github.com/jward/biome/internal/tree"
)

// view is one package frozen at one version.
type view struct {
	pkg     *Package
	version Version
	trunk   tree.Trunk
	layers  []Layer
}

func (p *Package) view(v Version) (view, error) {
	t, err := p.Trunk(v)
	if err != nil {
		return view{}, err
	}
	return view{pkg: p, version: v, trunk: t, layers: t.Layers()}, nil
}

func (v view) symbolMetadata(s SymbolIndex) *SymbolMetadata {
	m, _ := v.pkg.fields.symbols.Value(s, v.layers)
	return m
}

func (v view) moduleMetadata(m ModuleIndex) *ModuleMetadata {
	meta, _ := v.pkg.fields.modules.Value(m, v.layers)
	return meta
}

// Context is a read-only view of one package at one version together with
// every dependency at the version that revision pinned. All reads through a
// context see one consistent set of revisions and may run concurrently.
type Context struct {
	local       view
	views       map[PackageIndex]view
	order       []PackageIndex
	parallelism int
}

// Context opens a pinned context on p at v.
func (p *Package) Context(v Version, resolve func(PackageIndex) (*Package, error)) (*Context, error) {
	local, err := p.view(v)
	if err != nil {
		return nil, fmt.Errorf("open context: %w", err)
	}
	rev, err := p.Revision(v)
	if err != nil {
		return nil, fmt.Errorf("open context: %w", err)
	}
	c := &Context{
		local:       local,
		views:       map[PackageIndex]view{p.Index: local},
		order:       []PackageIndex{p.Index},
		parallelism: 8,
	}
	for _, idx := range rev.Pins.Packages() {
		dep, err := resolve(idx)
		if err != nil {
			return nil, fmt.Errorf("open context: pinned package %d: %w", idx, err)
		}
		dv, err := dep.view(rev.Pins[idx])
		if err != nil {
			return nil, fmt.Errorf("open context: pinned package %q: %w", dep.Name, err)
		}
		c.views[idx] = dv
		c.order = append(c.order, idx)
	}
	return c, nil
}

// Version returns the local version the context was opened at.
func (c *Context) Version() Version { return c.local.version }

// Package returns the local package.
func (c *Context) Package() *Package { return c.local.pkg }

// Pins returns the dependency versions visible through the context.
func (c *Context) Pins() Pins {
	pins := make(Pins, len(c.views)-1)
	for idx, v := range c.views {
		if idx != c.local.pkg.Index {
			pins[idx] = v.version
		}
	}
	return pins
}

func (c *Context) viewOf(pkg PackageIndex) (view, bool) {
	v, ok := c.views[pkg]
	return v, ok
}

// Module returns the module named name, looking in the local package first
// and then in the dependencies in package order. Absent modules are skipped.
func (c *Context) Module(name string) (ModuleIndex, bool) {
	for _, idx := range c.order {
		v := c.views[idx]
		pos, ok := v.trunk.FindModule(name)
		if ok && v.moduleMetadata(pos.Index) != nil {
			return pos.Index, true
		}
	}
	return ModuleIndex{}, false
}

// ModuleName returns the name of a module.
func (c *Context) ModuleName(m ModuleIndex) (string, bool) {
	v, ok := c.viewOf(m.Culture)
	if !ok {
		return "", false
	}
	rec, ok := v.trunk.Module(m)
	if !ok {
		return "", false
	}
	return rec.Value.Name, true
}

// ModuleExists reports whether the module is present at the pinned version.
func (c *Context) ModuleExists(m ModuleIndex) bool {
	return c.ModuleMetadata(m) != nil
}

// ModuleMetadata returns the module's metadata, or nil when absent.
func (c *Context) ModuleMetadata(m ModuleIndex) *ModuleMetadata {
	v, ok := c.viewOf(m.Culture)
	if !ok {
		return nil
	}
	return v.moduleMetadata(m)
}

// SymbolByID returns the symbol with external id, if it is present.
func (c *Context) SymbolByID(id string) (SymbolIndex, bool) {
	for _, idx := range c.order {
		v := c.views[idx]
		if pos, ok := v.trunk.FindSymbol(id); ok && v.symbolMetadata(pos.Index) != nil {
			return pos.Index, true
		}
	}
	return SymbolIndex{}, false
}

// Symbol returns the buffer record of a symbol.
func (c *Context) Symbol(s SymbolIndex) (SymbolRecord, bool) {
	v, ok := c.viewOf(s.Culture.Culture)
	if !ok {
		return SymbolRecord{}, false
	}
	rec, ok := v.trunk.Symbol(s)
	return rec.Value, ok
}

// SymbolID returns the external id of a symbol.
func (c *Context) SymbolID(s SymbolIndex) (string, bool) {
	v, ok := c.viewOf(s.Culture.Culture)
	if !ok {
		return "", false
	}
	rec, ok := v.trunk.Symbol(s)
	return rec.ID, ok
}

// SymbolMetadata returns the symbol's metadata, or nil when absent.
func (c *Context) SymbolMetadata(s SymbolIndex) *SymbolMetadata {
	v, ok := c.viewOf(s.Culture.Culture)
	if !ok {
		return nil
	}
	return v.symbolMetadata(s)
}

// Declaration returns the symbol's declaration at the pinned version.
func (c *Context) Declaration(s SymbolIndex) (Declaration, bool) {
	v, ok := c.viewOf(s.Culture.Culture)
	if !ok || v.symbolMetadata(s) == nil {
		return "", false
	}
	return v.pkg.fields.declarations.Value(s, v.layers)
}

// Documentation returns the symbol's documentation at the pinned version.
func (c *Context) Documentation(s SymbolIndex) (string, bool) {
	v, ok := c.viewOf(s.Culture.Culture)
	if !ok || v.symbolMetadata(s) == nil {
		return "", false
	}
	return v.pkg.fields.documentation.Value(s, v.layers)
}

// Article returns the article's body, or nil when absent.
func (c *Context) Article(a ArticleIndex) *ArticleBody {
	v, ok := c.viewOf(a.Culture.Culture)
	if !ok {
		return nil
	}
	body, _ := v.pkg.fields.articles.Value(a, v.layers)
	return body
}

// Scope is the lexical position a link expression is written from: the
// namespace it sits in, the path of the enclosing declaration, and the
// modules it imports.
//
// The zero Scope names module 0 of package 0. Namespaces that do not exist
// at the context's version are skipped, so from a context that does not
// pin package 0 the zero Scope contributes no candidates.
type Scope struct {
	Namespace ModuleIndex
	Path      []string
	Imports   []ModuleIndex
}

// ScopeOf returns the scope of a symbol's own documentation: its namespace,
// its path, and its module's dependencies.
func (c *Context) ScopeOf(s SymbolIndex) (Scope, bool) {
	rec, ok := c.Symbol(s)
	if !ok {
		return Scope{}, false
	}
	scope := Scope{Namespace: rec.Namespace, Path: rec.Path}
	if meta := c.ModuleMetadata(s.Culture); meta != nil {
		if s.Culture != rec.Namespace {
			scope.Imports = append(scope.Imports, s.Culture)
		}
		scope.Imports = append(scope.Imports, meta.Dependencies...)
	}
	return scope, true
}

// URI returns the address a target is published under: the namespace
// module name followed by the path, type-like components joined with '/'
// and a value-like last component attached with '.'.
func (c *Context) URI(t Target) (string, bool) {
	switch t.Kind {
	case TargetModule:
		name, ok := c.ModuleName(t.Module)
		return strings.ToLower(name), ok
	case TargetArticle:
		v, ok := c.viewOf(t.Article.Culture.Culture)
		if !ok {
			return "", false
		}
		rec, ok := v.trunk.Article(t.Article)
		if !ok {
			return "", false
		}
		name, _ := c.ModuleName(t.Article.Culture)
		return formatURI(name, rec.Value.Path, TypeLike), true
	case TargetSymbol:
		path, namespace, o, ok := c.printedPath(t.Composite)
		if !ok {
			return "", false
		}
		name, _ := c.ModuleName(namespace)
		return formatURI(name, path, o), true
	}
	return "", false
}

// printedPath returns the path a composite prints under. A feature prints
// under its host.
func (c *Context) printedPath(comp Composite) ([]string, ModuleIndex, Orientation, bool) {
	base, ok := c.Symbol(comp.Base)
	if !ok {
		return nil, ModuleIndex{}, TypeLike, false
	}
	o := OrientationOf(base.Kind)
	host, ok := comp.Host()
	if !ok {
		return base.Path, base.Namespace, o, true
	}
	hostRec, ok := c.Symbol(host)
	if !ok {
		return nil, ModuleIndex{}, TypeLike, false
	}
	path := append(append([]string(nil), hostRec.Path...), base.Name())
	return path, hostRec.Namespace, o, true
}

func formatURI(module string, path []string, o Orientation) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(module))
	last := len(path) - 1
	for i, component := range path {
		if i == last {
			sb.WriteString(o.Separator())
		} else {
			sb.WriteString("/")
		}
		sb.WriteString(strings.ToLower(component))
	}
	return sb.String()
}
