package store

import "time"

// Snapshot domain types. A snapshot is the complete serialised state of an
// engine; every row carries the snapshot id so several can coexist.

type Snapshot struct {
	ID        string
	CreatedAt time.Time
	Packages  []Package
}

type SnapshotInfo struct {
	ID        string
	CreatedAt time.Time
	Packages  int
}

type Package struct {
	Index     uint16
	Name      string
	Stems     []string
	Branches  []Branch
	Modules   []Entity
	Symbols   []Entity
	Articles  []Entity
	Routes    []Route
	Keyframes []Keyframe
}

type Branch struct {
	ID             uint32
	Name           string
	ParentBranch   *uint32
	ParentRevision *uint32
	Revisions      []Revision
}

type Revision struct {
	Number       uint32
	RingModules  uint32
	RingSymbols  uint32
	RingArticles uint32
	Hash         string
	Tag          string
	Pins         []Pin
}

type Pin struct {
	Package  uint16
	Branch   uint32
	Revision uint32
}

// Entity is one arena record. CulturePackage is always set; CultureOffset
// is the module offset for symbols and articles and unused for modules.
type Entity struct {
	Branch         uint32
	Offset         uint32
	ExternalID     string
	CulturePackage uint16
	CultureOffset  uint32
	Payload        []byte
}

// Route kinds.
const (
	RouteSymbol  = "symbol"
	RouteArticle = "article"
)

type Route struct {
	Branch        uint32
	ModulePackage uint16
	ModuleOffset  uint32
	Stem          uint32
	Leaf          uint32
	Kind          string
	Target        []byte
	Since         uint32
}

// Keyframe is one node of a field chain. Seq orders the nodes of one
// (field, branch, key) chain oldest first.
type Keyframe struct {
	Field  string
	Branch uint32
	Key    []byte
	Seq    int
	Since  uint32
	Value  []byte
}
