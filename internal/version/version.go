// Package version holds the small value types every other layer uses to
// talk about time: packages, branches, revisions, versions and the layers
// of a trunk chain.
package version

import "fmt"

// Package identifies a package within one engine. Assigned in registration
// order and never reused.
type Package uint16

// Branch identifies a branch within one package's tree.
type Branch uint32

// Revision numbers the commits of a lineage. A forked branch continues the
// numbering of its parent, so revisions along one ancestry never collide.
type Revision uint32

// Version addresses one committed revision on one branch.
type Version struct {
	Branch   Branch
	Revision Revision
}

func (v Version) String() string {
	return fmt.Sprintf("%d:%d", v.Branch, v.Revision)
}

// Layer is one step of a trunk chain: a branch, and the newest revision of
// that branch visible through the chain.
type Layer struct {
	Branch Branch
	Limit  Revision
}

// Clamp returns the revision a query for r should use inside this layer.
func (l Layer) Clamp(r Revision) Revision {
	if r > l.Limit {
		return l.Limit
	}
	return r
}
