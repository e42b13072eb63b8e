package store

// snapshotTables lists the tables holding per-snapshot rows, dependents
// first, keyed by the column naming the snapshot.
var snapshotTables = []struct {
	table  string
	column string
}{
	{"keyframes", "snapshot_id"},
	{"routes", "snapshot_id"},
	{"articles", "snapshot_id"},
	{"symbols", "snapshot_id"},
	{"modules", "snapshot_id"},
	{"pins", "snapshot_id"},
	{"revisions", "snapshot_id"},
	{"branches", "snapshot_id"},
	{"stems", "snapshot_id"},
	{"packages", "snapshot_id"},
	{"snapshots", "id"},
}

// entityTables lists the arena tables sharing the entity row shape.
var entityTables = []string{"modules", "symbols", "articles"}
