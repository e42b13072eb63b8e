package biome

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// TargetKind distinguishes what a link resolved to.
type TargetKind uint8

const (
	TargetModule TargetKind = iota
	TargetSymbol
	TargetArticle
)

func (k TargetKind) String() string {
	switch k {
	case TargetSymbol:
		return "symbol"
	case TargetArticle:
		return "article"
	default:
		return "module"
	}
}

// Target is one resolved entity. Only the field matching Kind is set.
type Target struct {
	Kind      TargetKind
	Module    ModuleIndex
	Composite Composite
	Article   ArticleIndex
}

// Outcome classifies a selection.
type Outcome uint8

const (
	None Outcome = iota
	One
	Many
)

func (o Outcome) String() string {
	switch o {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return "none"
	}
}

// Selection is the result of resolving a link: nothing, exactly one
// target, or several the caller must disambiguate.
type Selection struct {
	targets []Target
}

// Outcome returns none, one or many.
func (s Selection) Outcome() Outcome {
	switch len(s.targets) {
	case 0:
		return None
	case 1:
		return One
	default:
		return Many
	}
}

// One returns the target of a selection with exactly one.
func (s Selection) One() (Target, bool) {
	if len(s.targets) != 1 {
		return Target{}, false
	}
	return s.targets[0], true
}

// Targets returns every target.
func (s Selection) Targets() []Target { return slices.Clone(s.targets) }

// Len returns the number of targets.
func (s Selection) Len() int { return len(s.targets) }

// Reachability says how a composite can be reached at the pinned version.
type Reachability uint8

const (
	// Unreachable composites are not in their group at the pinned version.
	Unreachable Reachability = iota
	// Explicit composites are declared in place, or contributed by the
	// module that declares their host.
	Explicit
	// Transitive composites are features contributed by another module.
	Transitive
)

func (r Reachability) String() string {
	switch r {
	case Explicit:
		return "explicit"
	case Transitive:
		return "transitive"
	default:
		return "unreachable"
	}
}

// SetParallelism bounds the concurrent resolutions of ResolveAll.
func (c *Context) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	c.parallelism = n
}

// ResolveLink resolves one link.
func (c *Context) ResolveLink(l Link) Selection {
	return c.Resolve(l.Expression, l.Scope, l.Qualifiers)
}

// ResolveAll resolves links concurrently. Results line up with links.
func (c *Context) ResolveAll(ctx context.Context, links []Link) ([]Selection, error) {
	out := make([]Selection, len(links))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, l := range links {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = c.ResolveLink(l)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve links: %w", err)
	}
	return out, nil
}

// Resolve turns an expression into a selection.
//
// An empty expression names the scope's module, and a single component is
// tried as a module name first. Otherwise candidate routes are built from
// an explicit leading module name, then from every prefix of the scope
// path (longest first) in the scope's namespace and imports, each joined
// with every suffix of the expression (longest first). The first
// candidate whose group has live members wins; an ambiguous group is
// narrowed by the qualifiers. If nothing matches, the search is repeated
// once with the last component's orientation flipped, and finally the
// article routes are consulted.
func (c *Context) Resolve(expression string, scope Scope, q Qualifiers) Selection {
	components, o := ParseExpression(expression)
	if len(components) == 0 {
		if c.ModuleExists(scope.Namespace) {
			return Selection{targets: []Target{{Kind: TargetModule, Module: scope.Namespace}}}
		}
		return Selection{}
	}
	if len(components) == 1 {
		if m, ok := c.Module(components[0]); ok {
			return Selection{targets: []Target{{Kind: TargetModule, Module: m}}}
		}
	}

	candidates := c.candidates(components, scope)
	for _, orientation := range []Orientation{o, o.Flip()} {
		for _, cand := range candidates {
			members := c.group(cand.namespace, cand.path, orientation)
			if len(members) == 0 {
				continue
			}
			if len(members) > 1 {
				members = c.qualify(members, q)
			}
			targets := make([]Target, len(members))
			for i, m := range members {
				targets[i] = Target{Kind: TargetSymbol, Composite: m}
			}
			return Selection{targets: targets}
		}
	}

	for _, cand := range candidates {
		if a, ok := c.articleAt(cand.namespace, cand.path); ok {
			return Selection{targets: []Target{{Kind: TargetArticle, Article: a}}}
		}
	}
	return Selection{}
}

// Reachability reports whether comp is live in its group at the pinned
// version, and if so whether it is reached directly or through another
// module's contribution.
func (c *Context) Reachability(comp Composite) Reachability {
	path, namespace, o, ok := c.printedPath(comp)
	if !ok {
		return Unreachable
	}
	if !slices.Contains(c.group(namespace, path, o), comp) {
		return Unreachable
	}
	host, feature := comp.Host()
	if !feature || comp.Diacritic.Culture == host.Culture {
		return Explicit
	}
	return Transitive
}

type candidate struct {
	namespace ModuleIndex
	path      []string
}

func (c *Context) candidates(components []string, scope Scope) []candidate {
	var out []candidate
	if len(components) > 1 {
		if m, ok := c.Module(components[0]); ok {
			out = append(out, candidate{namespace: m, path: components[1:]})
		}
	}
	namespaces := []ModuleIndex{scope.Namespace}
	for _, m := range scope.Imports {
		if !slices.Contains(namespaces, m) {
			namespaces = append(namespaces, m)
		}
	}
	for _, ns := range namespaces {
		if !c.ModuleExists(ns) {
			continue
		}
		for k := len(scope.Path); k >= 0; k-- {
			for j := range components {
				path := make([]string, 0, k+len(components)-j)
				path = append(path, scope.Path[:k]...)
				path = append(path, components[j:]...)
				out = append(out, candidate{namespace: ns, path: path})
			}
		}
	}
	return out
}

// group returns the live members claimed under (namespace, path, o) in
// every package of the context. Each package interns its own paths, so the
// route is rebuilt per package.
func (c *Context) group(namespace ModuleIndex, path []string, o Orientation) []Composite {
	var members []Composite
	for _, idx := range c.order {
		v := c.views[idx]
		r, ok := v.pkg.interner.Find(namespace, path, o)
		if !ok {
			continue
		}
		for _, m := range v.trunk.Routes(r).Members() {
			if !slices.Contains(members, m) && c.live(m) {
				members = append(members, m)
			}
		}
	}
	return members
}

// live reports whether a composite exists at the pinned version: its base
// is present and, for a feature, the contributing module still lists it.
func (c *Context) live(comp Composite) bool {
	if c.SymbolMetadata(comp.Base) == nil {
		return false
	}
	if comp.IsNatural() {
		return true
	}
	return c.ModuleMetadata(comp.Diacritic.Culture).HasFeature(comp)
}

func (c *Context) qualify(members []Composite, q Qualifiers) []Composite {
	if q.Host != "" {
		host, ok := c.anySymbol(q.Host)
		members = slices.DeleteFunc(members, func(m Composite) bool {
			return !ok || m.Diacritic.Host != host
		})
	}
	if q.Base != "" {
		base, ok := c.anySymbol(q.Base)
		members = slices.DeleteFunc(members, func(m Composite) bool {
			return !ok || m.Base != base
		})
	}
	if q.Kind != "" {
		members = slices.DeleteFunc(members, func(m Composite) bool {
			rec, ok := c.Symbol(m.Base)
			return !ok || !strings.EqualFold(rec.Kind, q.Kind)
		})
	}
	return members
}

// anySymbol finds an external id whether or not the symbol is present.
func (c *Context) anySymbol(id string) (SymbolIndex, bool) {
	for _, idx := range c.order {
		if pos, ok := c.views[idx].trunk.FindSymbol(id); ok {
			return pos.Index, true
		}
	}
	return SymbolIndex{}, false
}

func (c *Context) articleAt(namespace ModuleIndex, path []string) (ArticleIndex, bool) {
	for _, idx := range c.order {
		v := c.views[idx]
		r, ok := v.pkg.interner.Find(namespace, path, TypeLike)
		if !ok {
			continue
		}
		if a, ok := v.trunk.ArticleRoute(r); ok && c.Article(a) != nil {
			return a, true
		}
	}
	return ArticleIndex{}, false
}
