package route

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jward/biome/internal/arena"
	"github.com/jward/biome/internal/version"
)

// Group is the set of composites sharing one route. Most routes hold
// exactly one; a group with more is ambiguous and needs disambiguation.
type Group struct {
	members []Composite
}

// NewGroup builds a group, dropping duplicate members but keeping order.
func NewGroup(members ...Composite) Group {
	var g Group
	for _, m := range members {
		g.add(m)
	}
	return g
}

func (g *Group) add(c Composite) bool {
	for _, m := range g.members {
		if m == c {
			return false
		}
	}
	g.members = append(g.members, c)
	return true
}

// Merge returns the union of two groups.
func (g Group) Merge(other Group) Group {
	out := Group{members: append([]Composite(nil), g.members...)}
	for _, m := range other.members {
		out.add(m)
	}
	return out
}

// Len returns the number of members.
func (g Group) Len() int { return len(g.members) }

// One returns the sole member of a singleton group.
func (g Group) One() (Composite, bool) {
	if len(g.members) != 1 {
		return Composite{}, false
	}
	return g.members[0], true
}

// Members returns a copy of the members.
func (g Group) Members() []Composite {
	return append([]Composite(nil), g.members...)
}

// Entry is a route claim recorded at a revision.
type Entry struct {
	Route     Route
	Composite Composite
	Since     version.Revision
}

// ArticleEntry is an article route claim recorded at a revision.
type ArticleEntry struct {
	Route   Route
	Article arena.ArticleIndex
	Since   version.Revision
}

type claim struct {
	composite Composite
	since     version.Revision
}

type articleClaim struct {
	article arena.ArticleIndex
	since   version.Revision
}

// Table maps routes to the composites and articles one branch added. Claims
// are never removed; readers filter them by revision and by whether the
// underlying entity still exists.
type Table struct {
	mu       sync.RWMutex
	groups   map[Route][]claim
	articles map[Route]articleClaim
	count    int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		groups:   make(map[Route][]claim),
		articles: make(map[Route]articleClaim),
	}
}

// Insert records that composite prints under route from revision since
// onward. A repeated claim keeps its earliest revision.
func (t *Table) Insert(r Route, c Composite, since version.Revision) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.groups[r] {
		if existing.composite == c {
			return false
		}
	}
	t.groups[r] = append(t.groups[r], claim{composite: c, since: since})
	t.count++
	return true
}

// Select returns the composites claimed under route at or before limit.
func (t *Table) Select(r Route, limit version.Revision) Group {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var g Group
	for _, c := range t.groups[r] {
		if c.since <= limit {
			g.add(c.composite)
		}
	}
	return g
}

// MustSelect is Select for a route that has just been claimed. A route
// with no claim at or before limit is a structural fault and panics.
func (t *Table) MustSelect(r Route, limit version.Revision) Group {
	g := t.Select(r, limit)
	if g.Len() == 0 {
		panic(fmt.Sprintf("route: registered route %v has no group at revision %d", r, limit))
	}
	return g
}

// InsertArticle records an article route. The first claim wins.
func (t *Table) InsertArticle(r Route, a arena.ArticleIndex, since version.Revision) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.articles[r]; ok {
		return false
	}
	t.articles[r] = articleClaim{article: a, since: since}
	return true
}

// Article returns the article claimed under route at or before limit.
func (t *Table) Article(r Route, limit version.Revision) (arena.ArticleIndex, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.articles[r]
	if !ok || c.since > limit {
		return arena.ArticleIndex{}, false
	}
	return c.article, true
}

// Len returns the number of composite claims.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Entries returns every composite claim ordered by revision, then route.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, t.count)
	for r, claims := range t.groups {
		for _, c := range claims {
			out = append(out, Entry{Route: r, Composite: c.composite, Since: c.since})
		}
	}
	t.mu.RUnlock()
	// Stable: claims of one route keep their insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Since != b.Since {
			return a.Since < b.Since
		}
		return lessRoute(a.Route, b.Route)
	})
	return out
}

// ArticleEntries returns every article claim ordered by revision, then
// route.
func (t *Table) ArticleEntries() []ArticleEntry {
	t.mu.RLock()
	out := make([]ArticleEntry, 0, len(t.articles))
	for r, c := range t.articles {
		out = append(out, ArticleEntry{Route: r, Article: c.article, Since: c.since})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Since != out[j].Since {
			return out[i].Since < out[j].Since
		}
		return lessRoute(out[i].Route, out[j].Route)
	})
	return out
}

func lessRoute(a, b Route) bool {
	ap, am, as, al := a.Tuple()
	bp, bm, bs, bl := b.Tuple()
	switch {
	case ap != bp:
		return ap < bp
	case am != bm:
		return am < bm
	case as != bs:
		return as < bs
	default:
		return al < bl
	}
}
