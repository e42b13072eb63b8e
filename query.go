package biome

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jward/biome/internal/history"
)

// QueryBuilder provides read-only listings over the engine's packages.
type QueryBuilder struct {
	engine *Engine
}

// Query returns a new QueryBuilder.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{engine: e}
}

// --- Common Types ---

// Pagination controls offset+limit paging on list results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName   SortField = "name"
	SortByKind   SortField = "kind"
	SortByModule SortField = "module"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

func paginate[T any](items []T, page Pagination) *PagedResult[T] {
	page = page.normalize()
	total := len(items)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	return &PagedResult[T]{Items: items[start:end], TotalCount: total}
}

// --- Branches and revisions ---

// BranchInfo summarises one branch.
type BranchInfo struct {
	ID        BranchID
	Name      string
	Fork      *Version // nil for a root branch
	First     Revision
	Revisions int
	Latest    *RevisionInfo // nil before the first commit
}

// Branches lists the branches of pkg in creation order.
func (q *QueryBuilder) Branches(pkg string) ([]BranchInfo, error) {
	p, err := q.engine.Package(pkg)
	if err != nil {
		return nil, fmt.Errorf("branches: %w", err)
	}
	var out []BranchInfo
	for _, b := range p.Branches() {
		info := BranchInfo{
			ID:        b.ID,
			Name:      b.Name,
			Fork:      b.Fork,
			First:     b.First(),
			Revisions: len(b.Revisions()),
		}
		if rev, ok := b.Latest(); ok {
			info.Latest = &rev
		}
		out = append(out, info)
	}
	return out, nil
}

// Revisions lists the revisions committed on a branch, newest first.
func (q *QueryBuilder) Revisions(pkg, branch string, page Pagination) (*PagedResult[RevisionInfo], error) {
	p, err := q.engine.Package(pkg)
	if err != nil {
		return nil, fmt.Errorf("revisions: %w", err)
	}
	b, err := p.Branch(branch)
	if err != nil {
		return nil, fmt.Errorf("revisions: %w", err)
	}
	revs := b.Revisions()
	slices.Reverse(revs)
	return paginate(revs, page), nil
}

// --- Symbols ---

// SymbolFilter specifies which symbols to include.
type SymbolFilter struct {
	Kinds      []string // match any of these kinds
	Module     *string  // restrict to symbols declared in this module
	PathPrefix []string // restrict to symbols under this path
}

// SymbolResult is a present symbol with the names a listing needs.
type SymbolResult struct {
	ID     string
	Index  SymbolIndex
	Module string
	Path   []string
	Kind   string
	URI    string
}

// Symbols lists the local package's symbols present in the context.
func (q *QueryBuilder) Symbols(c *Context, filter SymbolFilter, sorting Sort, page Pagination) *PagedResult[SymbolResult] {
	var items []SymbolResult
	for index, rec := range c.local.trunk.Symbols() {
		if c.local.symbolMetadata(index) == nil {
			continue
		}
		if len(filter.Kinds) > 0 && !slices.ContainsFunc(filter.Kinds, func(k string) bool {
			return strings.EqualFold(k, rec.Value.Kind)
		}) {
			continue
		}
		module, _ := c.ModuleName(index.Culture)
		if filter.Module != nil && !strings.EqualFold(*filter.Module, module) {
			continue
		}
		if !hasPrefixFold(rec.Value.Path, filter.PathPrefix) {
			continue
		}
		uri, _ := c.URI(Target{Kind: TargetSymbol, Composite: Natural(index)})
		items = append(items, SymbolResult{
			ID:     rec.ID,
			Index:  index,
			Module: module,
			Path:   rec.Value.Path,
			Kind:   rec.Value.Kind,
			URI:    uri,
		})
	}

	key := func(s SymbolResult) string {
		switch sorting.Field {
		case SortByKind:
			return s.Kind
		case SortByModule:
			return s.Module
		default:
			return s.URI
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if a == b {
			a, b = items[i].URI, items[j].URI
		}
		if sorting.Order == Desc {
			return a > b
		}
		return a < b
	})
	return paginate(items, page)
}

func hasPrefixFold(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if !strings.EqualFold(path[i], prefix[i]) {
			return false
		}
	}
	return true
}

// --- History ---

// Change is one keyframe of a symbol as seen from a version.
type Change struct {
	Version Version
	Field   string
	// Value is the new declaration or documentation text. For the symbol
	// field it is "added", "removed" or "changed".
	Value string
}

// SymbolHistory returns every change to the symbol with external id that
// is visible from version v of pkg, oldest first.
func (q *QueryBuilder) SymbolHistory(pkg string, v Version, id string) ([]Change, error) {
	p, err := q.engine.Package(pkg)
	if err != nil {
		return nil, fmt.Errorf("symbol history: %w", err)
	}
	t, err := p.Trunk(v)
	if err != nil {
		return nil, fmt.Errorf("symbol history: %w", err)
	}
	pos, ok := t.FindSymbol(id)
	if !ok {
		return nil, nil
	}
	s := pos.Index

	var changes []Change
	present := false
	for i := len(t.Epochs) - 1; i >= 0; i-- {
		epoch := t.Epochs[i]
		version := func(r Revision) Version { return Version{Branch: epoch.Branch.ID, Revision: r} }

		for _, kf := range oldestFirst(p.fields.symbols.Chain(epoch.Branch.ID, s), epoch.Limit) {
			value := "changed"
			switch {
			case kf.Value == nil:
				value = "removed"
				present = false
			case !present:
				value = "added"
				present = true
			}
			changes = append(changes, Change{Version: version(kf.Since), Field: FieldSymbol, Value: value})
		}
		for _, kf := range oldestFirst(p.fields.declarations.Chain(epoch.Branch.ID, s), epoch.Limit) {
			changes = append(changes, Change{Version: version(kf.Since), Field: FieldDeclaration, Value: string(kf.Value)})
		}
		for _, kf := range oldestFirst(p.fields.documentation.Chain(epoch.Branch.ID, s), epoch.Limit) {
			changes = append(changes, Change{Version: version(kf.Since), Field: FieldDocumentation, Value: kf.Value})
		}
	}
	fieldOrder := map[string]int{FieldSymbol: 0, FieldDeclaration: 1, FieldDocumentation: 2}
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Version.Revision != changes[j].Version.Revision {
			return changes[i].Version.Revision < changes[j].Version.Revision
		}
		return fieldOrder[changes[i].Field] < fieldOrder[changes[j].Field]
	})
	return changes, nil
}

// oldestFirst reverses a newest-first chain, keeping keyframes at or before
// limit.
func oldestFirst[V any](chain []history.Keyframe[V], limit Revision) []history.Keyframe[V] {
	var out []history.Keyframe[V]
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Since <= limit {
			out = append(out, chain[i])
		}
	}
	return out
}
