package tree

import (
	"github.com/jward/biome/internal/version"
)

// Ring is the extent of a branch's buffers when a revision was committed.
// Everything below these offsets existed at that revision.
type Ring struct {
	Modules  uint32
	Symbols  uint32
	Articles uint32
}

// Revision is an immutable commit record.
type Revision struct {
	Number version.Revision
	Ring   Ring
	Pins   version.Pins
	Hash   string
	Tag    version.Tag
}
