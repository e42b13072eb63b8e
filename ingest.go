package biome

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/jward/biome/internal/route"
	"github.com/jward/biome/internal/store"
	"github.com/jward/biome/internal/tree"
)

// Relation is the kind of an ingestion edge.
type Relation string

const (
	RelationMember                Relation = "member"
	RelationRequirement           Relation = "requirement"
	RelationConformance           Relation = "conformance"
	RelationInheritance           Relation = "inheritance"
	RelationFeature               Relation = "feature"
	RelationOverride              Relation = "override"
	RelationDefaultImplementation Relation = "default-implementation"
)

// Vertex is one declaration produced by the symbol-graph extractor.
type Vertex struct {
	ID   string   `yaml:"id" json:"id"`
	Path []string `yaml:"path" json:"path"`
	Kind string   `yaml:"kind" json:"kind"`
	// Namespace names the module whose namespace the symbol lives in. Empty
	// means the graph's own module.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	// Scope is the external id of the enclosing type, shorthand for a
	// member edge.
	Scope         string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Declaration   string `yaml:"declaration,omitempty" json:"declaration,omitempty"`
	Documentation string `yaml:"documentation,omitempty" json:"documentation,omitempty"`
}

// Edge relates two vertices by external id. Culture names the module that
// declared the relationship; empty means the graph's own module.
type Edge struct {
	Source   string   `yaml:"source" json:"source"`
	Target   string   `yaml:"target" json:"target"`
	Relation Relation `yaml:"relation" json:"relation"`
	Culture  string   `yaml:"culture,omitempty" json:"culture,omitempty"`
}

// ArticleInput is one free-standing documentation page.
type ArticleInput struct {
	ID    string   `yaml:"id" json:"id"`
	Path  []string `yaml:"path" json:"path"`
	Title string   `yaml:"title,omitempty" json:"title,omitempty"`
	Body  string   `yaml:"body,omitempty" json:"body,omitempty"`
}

// ModuleGraph is the batch the extractor produces for one module,
// deduplicated by identity.
type ModuleGraph struct {
	Module       string         `yaml:"module" json:"module"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Vertices     []Vertex       `yaml:"vertices,omitempty" json:"vertices,omitempty"`
	Edges        []Edge         `yaml:"edges,omitempty" json:"edges,omitempty"`
	Articles     []ArticleInput `yaml:"articles,omitempty" json:"articles,omitempty"`
}

// Dependency pins one version of another package.
type Dependency struct {
	Package *Package
	Version Version
}

// UpdateRequest describes one revision to build. The graphs are the
// complete content of the package at the new revision; modules, symbols
// and articles missing from them are recorded as absent.
type UpdateRequest struct {
	Branch       string
	Tag          string
	Graphs       []ModuleGraph
	Dependencies []Dependency
}

// UpdateResult summarises a writer pass.
type UpdateResult struct {
	Version   Version
	Hash      string
	Duplicate bool

	Modules    int
	Symbols    int
	Articles   int
	NewSymbols int
	Keyframes  int

	Warnings     []string
	DroppedEdges int
}

// typeLikeKinds are the symbol kinds addressed with '/' before their last
// component. Everything else is value-like.
var typeLikeKinds = map[string]bool{
	"actor":          true,
	"associatedtype": true,
	"class":          true,
	"enum":           true,
	"interface":      true,
	"macro":          true,
	"module":         true,
	"namespace":      true,
	"protocol":       true,
	"struct":         true,
	"type":           true,
	"typealias":      true,
}

// OrientationOf returns how a symbol of the given kind is addressed.
func OrientationOf(kind string) Orientation {
	if typeLikeKinds[strings.ToLower(kind)] {
		return TypeLike
	}
	return ValueLike
}

// Update builds and commits one revision on the named branch. A package
// without branches gets a root branch with that name.
//
// The pass is single-writer per branch: a second concurrent Update on the
// same branch fails with ErrBranchBusy. Validation problems in the graphs
// become warnings; the rest of the batch still commits.
func (p *Package) Update(req UpdateRequest) (*UpdateResult, error) {
	b, err := p.tree.Named(req.Branch)
	if errors.Is(err, tree.ErrBranchNotFound) && len(p.tree.Branches()) == 0 {
		b, err = p.tree.Fork(nil, req.Branch)
	}
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", p.Name, err)
	}
	if !b.Acquire() {
		return nil, fmt.Errorf("update %q on %q: %w", p.Name, b.Name, ErrBranchBusy)
	}
	defer b.Release()

	tag := ParseTag(req.Tag)
	pins, deps, err := p.pin(req.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("update %q on %q: %w", p.Name, b.Name, err)
	}

	hash, err := contentHash(req.Graphs, tag, pins)
	if err != nil {
		return nil, fmt.Errorf("update %q on %q: %w", p.Name, b.Name, err)
	}
	if rev, ok := b.Find(hash); ok {
		latest, _ := b.Latest()
		if rev.Number == latest.Number || !tag.IsZero() {
			p.logger.Debug("Skipped duplicate import", slog.String("branch", b.Name), slog.String("hash", hash))
			return &UpdateResult{Version: b.Version(rev.Number), Hash: hash, Duplicate: true}, nil
		}
	}
	if err := p.checkTag(b, tag); err != nil {
		return nil, err
	}

	head, err := p.tree.Head(b.ID)
	if err != nil {
		return nil, fmt.Errorf("update %q on %q: %w", p.Name, b.Name, err)
	}
	w := &writer{
		pkg:     p,
		branch:  b,
		head:    head,
		next:    b.Next(),
		deps:    deps,
		modules: make(map[ModuleIndex]*moduleFacts),
		symbols: make(map[SymbolIndex]*symbolFacts),
		result:  &UpdateResult{Hash: hash},
	}
	w.ingest(req.Graphs)
	w.push()

	rev := b.Commit(hash, tag, pins)
	v := b.Version(rev.Number)
	p.registerTag(tag, v)
	for _, d := range req.Dependencies {
		d.Package.addConsumer(d.Version, Consumer{Package: p.Index, Version: v})
	}

	w.result.Version = v
	for _, msg := range w.result.Warnings {
		p.logger.Warn("Ingestion warning", slog.String("branch", b.Name), slog.String("warning", msg))
	}
	if w.result.DroppedEdges > 0 {
		p.logger.Warn("Dropped edges", slog.String("branch", b.Name), slog.Int("count", w.result.DroppedEdges))
	}
	p.logger.Info("Committed revision",
		slog.String("branch", b.Name),
		slog.String("version", v.String()),
		slog.String("tag", tag.String()),
		slog.Int("symbols", w.result.Symbols),
		slog.Int("keyframes", w.result.Keyframes),
	)
	return w.result, nil
}

// pin validates the dependencies and opens their trunks.
func (p *Package) pin(deps []Dependency) (Pins, []view, error) {
	pins := make(Pins, len(deps))
	views := make([]view, 0, len(deps))
	for _, d := range deps {
		if d.Package == nil {
			return nil, nil, fmt.Errorf("pin dependency: %w", ErrPackageNotFound)
		}
		if d.Package == p {
			return nil, nil, fmt.Errorf("pin %q: a package cannot depend on itself", p.Name)
		}
		if existing, ok := pins[d.Package.Index]; ok && existing != d.Version {
			return nil, nil, fmt.Errorf("pin %q: pinned at both %s and %s", d.Package.Name, existing, d.Version)
		}
		v, err := d.Package.view(d.Version)
		if err != nil {
			return nil, nil, fmt.Errorf("pin %q: %w", d.Package.Name, err)
		}
		pins[d.Package.Index] = d.Version
		views = append(views, v)
	}
	return pins, views, nil
}

// contentHash fingerprints a batch. Graphs and their contents are sorted
// first so the hash does not depend on extractor output order.
func contentHash(graphs []ModuleGraph, tag Tag, pins Pins) (string, error) {
	canonical := make([]ModuleGraph, len(graphs))
	for i, g := range graphs {
		g.Dependencies = slices.Clone(g.Dependencies)
		sort.Strings(g.Dependencies)
		g.Vertices = slices.Clone(g.Vertices)
		sort.Slice(g.Vertices, func(a, b int) bool { return g.Vertices[a].ID < g.Vertices[b].ID })
		g.Edges = slices.Clone(g.Edges)
		sort.Slice(g.Edges, func(a, b int) bool { return lessEdge(g.Edges[a], g.Edges[b]) })
		g.Articles = slices.Clone(g.Articles)
		sort.Slice(g.Articles, func(a, b int) bool { return g.Articles[a].ID < g.Articles[b].ID })
		canonical[i] = g
	}
	sort.Slice(canonical, func(a, b int) bool { return canonical[a].Module < canonical[b].Module })

	type pinned struct {
		Package PackageIndex
		Branch  BranchID
		Rev     Revision
	}
	var ps []pinned
	for _, pkg := range pins.Packages() {
		ps = append(ps, pinned{Package: pkg, Branch: pins[pkg].Branch, Rev: pins[pkg].Revision})
	}

	data, err := store.Encode(struct {
		Tag    string
		Pins   []pinned
		Graphs []ModuleGraph
	}{tag.String(), ps, canonical})
	if err != nil {
		return "", fmt.Errorf("hash batch: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func lessEdge(a, b Edge) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	if a.Relation != b.Relation {
		return a.Relation < b.Relation
	}
	return a.Culture < b.Culture
}

type moduleFacts struct {
	dependencies []ModuleIndex
	features     []Composite
}

type symbolFacts struct {
	record        tree.Symbol
	metadata      SymbolMetadata
	roleSet       bool
	declaration   Declaration
	documentation string
}

type articleFacts struct {
	body ArticleBody
}

// writer carries the state of one Update pass.
type writer struct {
	pkg    *Package
	branch *Branch
	head   tree.Head
	next   Revision
	deps   []view

	moduleOrder []ModuleIndex
	modules     map[ModuleIndex]*moduleFacts
	symbolOrder []SymbolIndex
	symbols     map[SymbolIndex]*symbolFacts
	articles    map[ArticleIndex]*articleFacts

	result *UpdateResult
}

func (w *writer) warn(format string, args ...any) {
	w.result.Warnings = append(w.result.Warnings, fmt.Sprintf(format, args...))
}

func (w *writer) drop(e Edge, reason string) {
	w.result.DroppedEdges++
	w.warn("dropped %s edge %s -> %s: %s", e.Relation, e.Source, e.Target, reason)
}

func (w *writer) ingest(graphs []ModuleGraph) {
	w.articles = make(map[ArticleIndex]*articleFacts)

	graphModules := make([]ModuleIndex, len(graphs))
	for i, g := range graphs {
		graphModules[i] = w.module(g.Module)
	}
	for i, g := range graphs {
		for _, v := range g.Vertices {
			w.vertex(graphModules[i], v)
		}
		for _, a := range g.Articles {
			w.article(graphModules[i], a)
		}
	}
	for i, g := range graphs {
		facts := w.modules[graphModules[i]]
		for _, name := range g.Dependencies {
			dep, ok := w.findModule(name)
			if !ok {
				w.warn("module %s: unknown dependency %q", g.Module, name)
				continue
			}
			if dep != graphModules[i] && !slices.Contains(facts.dependencies, dep) {
				facts.dependencies = append(facts.dependencies, dep)
			}
		}
		for _, v := range g.Vertices {
			if v.Scope != "" {
				w.edge(graphModules[i], Edge{Source: v.ID, Target: v.Scope, Relation: RelationMember})
			}
		}
		for _, e := range g.Edges {
			w.edge(graphModules[i], e)
		}
	}
	w.result.Modules = len(w.moduleOrder)
	w.result.Symbols = len(w.symbolOrder)
	w.result.Articles = len(w.articles)
}

// module finds or inserts a local module.
func (w *writer) module(name string) ModuleIndex {
	index, ok := w.head.FindModule(name)
	if !ok {
		index, _ = w.branch.Modules.Insert(name, w.pkg.Index, func(ModuleIndex) tree.Module {
			return tree.Module{Name: name}
		})
	}
	if _, seen := w.modules[index]; !seen {
		w.modules[index] = &moduleFacts{}
		w.moduleOrder = append(w.moduleOrder, index)
	}
	return index
}

// findModule looks a module name up locally, then in the pinned
// dependencies.
func (w *writer) findModule(name string) (ModuleIndex, bool) {
	if index, ok := w.head.FindModule(name); ok {
		return index, true
	}
	for _, d := range w.deps {
		if pos, ok := d.trunk.FindModule(name); ok {
			return pos.Index, true
		}
	}
	return ModuleIndex{}, false
}

// findSymbol looks an external id up locally, then in the pinned
// dependencies.
func (w *writer) findSymbol(id string) (SymbolIndex, tree.Symbol, bool) {
	if index, ok := w.head.FindSymbol(id); ok {
		rec, _ := w.head.Symbol(index)
		return index, rec.Value, true
	}
	for _, d := range w.deps {
		if pos, ok := d.trunk.FindSymbol(id); ok {
			rec, _ := d.trunk.Symbol(pos.Index)
			return pos.Index, rec.Value, true
		}
	}
	return SymbolIndex{}, tree.Symbol{}, false
}

func (w *writer) vertex(module ModuleIndex, v Vertex) {
	if v.ID == "" || len(v.Path) == 0 {
		w.warn("vertex %q: missing id or path", v.ID)
		return
	}
	namespace := module
	if v.Namespace != "" {
		ns, ok := w.findModule(v.Namespace)
		if !ok {
			w.warn("vertex %s: unknown namespace %q", v.ID, v.Namespace)
		} else {
			namespace = ns
		}
	}

	index, ok := w.head.FindSymbol(v.ID)
	if !ok {
		r := w.pkg.interner.Intern(namespace, v.Path, OrientationOf(v.Kind))
		index, _ = w.branch.Symbols.Insert(v.ID, module, func(SymbolIndex) tree.Symbol {
			return tree.Symbol{
				Path:      slices.Clone(v.Path),
				Kind:      v.Kind,
				Namespace: namespace,
				Route:     r,
			}
		})
		w.claim(r, route.Natural(index))
		w.result.NewSymbols++
	}
	if _, dup := w.symbols[index]; dup {
		w.warn("vertex %s: duplicate in batch", v.ID)
		return
	}
	rec, _ := w.head.Symbol(index)
	w.symbols[index] = &symbolFacts{
		record:        rec.Value,
		metadata:      SymbolMetadata{Role: TopLevel()},
		declaration:   Declaration(v.Declaration),
		documentation: v.Documentation,
	}
	w.symbolOrder = append(w.symbolOrder, index)
}

func (w *writer) article(module ModuleIndex, a ArticleInput) {
	if a.ID == "" || len(a.Path) == 0 {
		w.warn("article %q: missing id or path", a.ID)
		return
	}
	index, ok := w.head.FindArticle(a.ID)
	if !ok {
		r := w.pkg.interner.Intern(module, a.Path, TypeLike)
		index, _ = w.branch.Articles.Insert(a.ID, module, func(ArticleIndex) tree.Article {
			return tree.Article{Path: slices.Clone(a.Path), Route: r}
		})
		if !w.branch.Routes.InsertArticle(r, index, w.next) {
			w.warn("article %s: route already taken", a.ID)
		}
	}
	if _, dup := w.articles[index]; dup {
		w.warn("article %s: duplicate in batch", a.ID)
		return
	}
	w.articles[index] = &articleFacts{body: ArticleBody{Title: a.Title, Markdown: a.Body}}
}

// claim records a route claim unless an ancestor already holds it.
func (w *writer) claim(r Route, c Composite) {
	if slices.Contains(w.head.Parent.Routes(r).Members(), c) {
		return
	}
	w.branch.Routes.Insert(r, c, w.next)
	w.branch.Routes.MustSelect(r, w.next)
}

func (w *writer) edge(module ModuleIndex, e Edge) {
	source, sourceRec, ok := w.findSymbol(e.Source)
	if !ok {
		w.drop(e, "unknown source")
		return
	}
	target, targetRec, ok := w.findSymbol(e.Target)
	if !ok {
		w.drop(e, "unknown target")
		return
	}

	if e.Relation == RelationFeature {
		w.feature(module, e, source, sourceRec, target, targetRec)
		return
	}

	facts, local := w.symbols[source]
	if !local {
		w.drop(e, "source is not part of this batch")
		return
	}
	m := &facts.metadata
	switch e.Relation {
	case RelationMember, RelationRequirement:
		role := MemberOf(target)
		if e.Relation == RelationRequirement {
			role = RequirementOf(target)
		}
		if facts.roleSet && m.Role != role {
			w.drop(e, fmt.Sprintf("conflicts with existing %s role", m.Role.Kind()))
			return
		}
		m.Role = role
		facts.roleSet = true
	case RelationConformance:
		m.Conformances = appendUnique(m.Conformances, target)
	case RelationInheritance:
		m.Superclasses = appendUnique(m.Superclasses, target)
	case RelationOverride:
		m.Overrides = appendUnique(m.Overrides, target)
	case RelationDefaultImplementation:
		m.Implements = appendUnique(m.Implements, target)
	default:
		w.drop(e, "unknown relation")
	}
}

// feature records base surfacing on host. The contributing module must be
// local; base and host may come from dependencies.
func (w *writer) feature(module ModuleIndex, e Edge, base SymbolIndex, baseRec tree.Symbol, host SymbolIndex, hostRec tree.Symbol) {
	culture := module
	if e.Culture != "" {
		c, ok := w.head.FindModule(e.Culture)
		if !ok {
			w.drop(e, fmt.Sprintf("culture %q is not a module of this package", e.Culture))
			return
		}
		culture = c
	}
	facts, ok := w.modules[culture]
	if !ok {
		w.drop(e, "culture is not part of this batch")
		return
	}
	if base == host {
		w.drop(e, "a symbol cannot be a feature of itself")
		return
	}

	c := route.Feature(base, host, culture)
	path := append(slices.Clone(hostRec.Path), baseRec.Name())
	r := w.pkg.interner.Intern(hostRec.Namespace, path, OrientationOf(baseRec.Kind))
	w.claim(r, c)
	if !slices.Contains(facts.features, c) {
		facts.features = append(facts.features, c)
	}
}

func appendUnique(list []SymbolIndex, s SymbolIndex) []SymbolIndex {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// push writes every field value for the new revision. Entities the batch
// does not mention are pushed as absent; no-op pushes add nothing.
func (w *writer) push() {
	v := w.branch.Version(w.next)
	parents := w.head.Parents()
	f := &w.pkg.fields
	count := func(added bool) {
		if added {
			w.result.Keyframes++
		}
	}

	for index := range w.head.Modules() {
		facts, ok := w.modules[index]
		if !ok {
			count(f.modules.Push(v, index, nil, parents))
			continue
		}
		count(f.modules.Push(v, index, &ModuleMetadata{
			Dependencies: facts.dependencies,
			Features:     facts.features,
		}, parents))
	}

	for index := range w.head.Symbols() {
		facts, ok := w.symbols[index]
		if !ok {
			count(f.symbols.Push(v, index, nil, parents))
			continue
		}
		metadata := facts.metadata
		count(f.symbols.Push(v, index, &metadata, parents))
		count(f.declarations.Push(v, index, facts.declaration, parents))
		count(f.documentation.Push(v, index, facts.documentation, parents))
	}

	for index := range w.head.Articles() {
		facts, ok := w.articles[index]
		if !ok {
			count(f.articles.Push(v, index, nil, parents))
			continue
		}
		body := facts.body
		count(f.articles.Push(v, index, &body, parents))
	}
}
