// Package biome is a versioned, branch-aware store for documentation
// entities. It records the modules, symbols and articles of many packages
// across revisions and divergent forks of each package's history, addresses
// them through compact interned routes, and resolves textual link
// expressions into zero, one or many entities.
//
// # Model
//
// Every package owns a tree of branches. A branch is forked from a
// committed version of its parent and numbers its revisions after the fork
// point. Entities live in append-only per-branch buffers and are referred
// to by opaque indices that never change. What an entity looks like at a
// revision is kept in per-field keyframe chains; a branch never copies its
// parent's chains and reads fall through the trunk of ancestor epochs
// instead.
//
// # Usage
//
// Create an Engine, import module graphs, and open a pinned context:
//
//	e, err := biome.Open(".biome/biome.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	res, err := e.Update(biome.Import{
//		Package: "swift-nio",
//		Tag:     "2.1.0",
//		Graphs:  graphs,
//	})
//
//	c, err := e.ContextAt("swift-nio", "2.1.0")
//	sel := c.Resolve("NIOCore/ByteBuffer.readInteger(as:)", biome.Scope{}, biome.Qualifiers{})
//
// # Resolution
//
// [Context.Resolve] returns a [Selection] holding no target, exactly one,
// or several the caller must narrow with [Qualifiers]. A miss is never an
// error. [Context.ResolveAll] resolves many links concurrently.
//
// # Persistence
//
// [Engine.Save] writes a snapshot of every package to SQLite and
// [Engine.Load] (called by [Open]) restores the newest one.
package biome
