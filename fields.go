package biome

import (
	"slices"

	"github.com/jward/biome/internal/history"
)

// RoleKind distinguishes the ways a symbol can sit inside its scope.
type RoleKind uint8

const (
	RoleTopLevel RoleKind = iota
	RoleMember
	RoleRequirement
)

func (k RoleKind) String() string {
	switch k {
	case RoleMember:
		return "member"
	case RoleRequirement:
		return "requirement"
	default:
		return "top-level"
	}
}

// Role is a closed union: a symbol is top level, a member of one type, or a
// requirement of one protocol. The constructors are the only way to build
// one, so a role naming two scopes cannot exist.
type Role struct {
	kind  RoleKind
	scope SymbolIndex
}

// TopLevel returns the role of a symbol declared directly in a module.
func TopLevel() Role { return Role{kind: RoleTopLevel} }

// MemberOf returns the role of a member of scope.
func MemberOf(scope SymbolIndex) Role { return Role{kind: RoleMember, scope: scope} }

// RequirementOf returns the role of a requirement of protocol.
func RequirementOf(protocol SymbolIndex) Role {
	return Role{kind: RoleRequirement, scope: protocol}
}

// Kind returns the variant.
func (r Role) Kind() RoleKind { return r.kind }

// Scope returns the enclosing type of a member or requirement.
func (r Role) Scope() (SymbolIndex, bool) {
	if r.kind == RoleTopLevel {
		return SymbolIndex{}, false
	}
	return r.scope, true
}

// SymbolMetadata is what the ingestion pass derived for one symbol at one
// revision. A nil value in the history means the symbol is absent.
type SymbolMetadata struct {
	Role         Role
	Conformances []SymbolIndex
	Superclasses []SymbolIndex
	Overrides    []SymbolIndex
	// Implements lists the requirements this symbol is a default
	// implementation of.
	Implements []SymbolIndex
}

// Equal reports whether two metadata values are the same, treating nil as
// absence.
func (m *SymbolMetadata) Equal(other *SymbolMetadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Role == other.Role &&
		slices.Equal(m.Conformances, other.Conformances) &&
		slices.Equal(m.Superclasses, other.Superclasses) &&
		slices.Equal(m.Overrides, other.Overrides) &&
		slices.Equal(m.Implements, other.Implements)
}

// ModuleMetadata is the per-revision state of a module. A nil value in the
// history means the module is absent.
type ModuleMetadata struct {
	Dependencies []ModuleIndex
	// Features lists the feature composites this module contributes. Each
	// has the module as its diacritic culture.
	Features []Composite
}

// Equal reports whether two metadata values are the same, treating nil as
// absence.
func (m *ModuleMetadata) Equal(other *ModuleMetadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return slices.Equal(m.Dependencies, other.Dependencies) &&
		slices.Equal(m.Features, other.Features)
}

// HasFeature reports whether the module contributes c.
func (m *ModuleMetadata) HasFeature(c Composite) bool {
	return m != nil && slices.Contains(m.Features, c)
}

// ArticleBody is the content of an article at one revision.
type ArticleBody struct {
	Title    string
	Markdown string
}

// Equal reports whether two bodies are the same, treating nil as absence.
func (b *ArticleBody) Equal(other *ArticleBody) bool {
	if b == nil || other == nil {
		return b == other
	}
	return *b == *other
}

// Declaration is the rendered declaration text of a symbol.
type Declaration string

// Field names, as recorded by persistence.
const (
	FieldModule        = "module"
	FieldSymbol        = "symbol"
	FieldDeclaration   = "declaration"
	FieldDocumentation = "documentation"
	FieldArticle       = "article"
)

// fields holds the versioned histories of one package.
type fields struct {
	modules       *history.History[ModuleIndex, *ModuleMetadata]
	symbols       *history.History[SymbolIndex, *SymbolMetadata]
	declarations  *history.History[SymbolIndex, Declaration]
	documentation *history.History[SymbolIndex, string]
	articles      *history.History[ArticleIndex, *ArticleBody]
}

func newFields() fields {
	return fields{
		modules:       history.New[ModuleIndex]((*ModuleMetadata).Equal),
		symbols:       history.New[SymbolIndex]((*SymbolMetadata).Equal),
		declarations:  history.NewComparable[SymbolIndex, Declaration](),
		documentation: history.NewComparable[SymbolIndex, string](),
		articles:      history.New[ArticleIndex]((*ArticleBody).Equal),
	}
}
