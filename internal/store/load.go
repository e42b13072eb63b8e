package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoSnapshot is returned when the database holds no snapshot to load.
var ErrNoSnapshot = errors.New("no snapshot")

// LatestSnapshot loads the most recently created snapshot.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	var id string
	err := s.db.QueryRow("SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return s.LoadSnapshot(id)
}

// LoadSnapshot reads the snapshot with the given id.
func (s *Store) LoadSnapshot(id string) (*Snapshot, error) {
	snap := &Snapshot{ID: id}
	err := s.db.QueryRow("SELECT created_at FROM snapshots WHERE id = ?", id).Scan(&snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load snapshot %s: %w", id, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	rows, err := s.db.Query("SELECT idx, name FROM packages WHERE snapshot_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: packages: %w", id, err)
	}
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.Index, &p.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load snapshot %s: scan package: %w", id, err)
		}
		snap.Packages = append(snap.Packages, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("load snapshot %s: packages: %w", id, err)
	}
	rows.Close()

	for i := range snap.Packages {
		if err := s.loadPackage(id, &snap.Packages[i]); err != nil {
			return nil, fmt.Errorf("load snapshot %s: package %q: %w", id, snap.Packages[i].Name, err)
		}
	}
	return snap, nil
}

func (s *Store) loadPackage(snapshotID string, p *Package) error {
	var err error
	if p.Stems, err = s.loadStems(snapshotID, p.Index); err != nil {
		return err
	}
	if p.Branches, err = s.loadBranches(snapshotID, p.Index); err != nil {
		return err
	}
	for i, dst := range []*[]Entity{&p.Modules, &p.Symbols, &p.Articles} {
		if *dst, err = s.loadEntities(entityTables[i], snapshotID, p.Index); err != nil {
			return err
		}
	}
	if p.Routes, err = s.loadRoutes(snapshotID, p.Index); err != nil {
		return err
	}
	if p.Keyframes, err = s.loadKeyframes(snapshotID, p.Index); err != nil {
		return err
	}
	return nil
}

func (s *Store) loadStems(snapshotID string, pkg uint16) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT stem, text FROM stems WHERE snapshot_id = ? AND package = ? ORDER BY stem",
		snapshotID, pkg,
	)
	if err != nil {
		return nil, fmt.Errorf("stems: %w", err)
	}
	defer rows.Close()

	var stems []string
	for rows.Next() {
		var stem int
		var text string
		if err := rows.Scan(&stem, &text); err != nil {
			return nil, fmt.Errorf("scan stem: %w", err)
		}
		if stem != len(stems) {
			return nil, fmt.Errorf("stems: gap before stem %d", stem)
		}
		stems = append(stems, text)
	}
	return stems, rows.Err()
}

func (s *Store) loadBranches(snapshotID string, pkg uint16) ([]Branch, error) {
	rows, err := s.db.Query(
		`SELECT id, name, parent_branch, parent_revision FROM branches
		 WHERE snapshot_id = ? AND package = ? ORDER BY id`,
		snapshotID, pkg,
	)
	if err != nil {
		return nil, fmt.Errorf("branches: %w", err)
	}
	var branches []Branch
	for rows.Next() {
		var b Branch
		var parentBranch, parentRevision sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Name, &parentBranch, &parentRevision); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		if parentBranch.Valid && parentRevision.Valid {
			pb, pr := uint32(parentBranch.Int64), uint32(parentRevision.Int64)
			b.ParentBranch, b.ParentRevision = &pb, &pr
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("branches: %w", err)
	}
	rows.Close()

	for i := range branches {
		revs, err := s.loadRevisions(snapshotID, pkg, branches[i].ID)
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", branches[i].Name, err)
		}
		branches[i].Revisions = revs
	}
	return branches, nil
}

func (s *Store) loadRevisions(snapshotID string, pkg uint16, branch uint32) ([]Revision, error) {
	rows, err := s.db.Query(
		`SELECT number, ring_modules, ring_symbols, ring_articles, hash, tag FROM revisions
		 WHERE snapshot_id = ? AND package = ? AND branch = ? ORDER BY number`,
		snapshotID, pkg, branch,
	)
	if err != nil {
		return nil, fmt.Errorf("revisions: %w", err)
	}
	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.Number, &r.RingModules, &r.RingSymbols, &r.RingArticles, &r.Hash, &r.Tag); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("revisions: %w", err)
	}
	rows.Close()

	pins, err := s.db.Query(
		`SELECT revision, dep_package, dep_branch, dep_revision FROM pins
		 WHERE snapshot_id = ? AND package = ? AND branch = ? ORDER BY revision, dep_package`,
		snapshotID, pkg, branch,
	)
	if err != nil {
		return nil, fmt.Errorf("pins: %w", err)
	}
	defer pins.Close()

	byNumber := make(map[uint32]int, len(revs))
	for i, r := range revs {
		byNumber[r.Number] = i
	}
	for pins.Next() {
		var number uint32
		var pin Pin
		if err := pins.Scan(&number, &pin.Package, &pin.Branch, &pin.Revision); err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		i, ok := byNumber[number]
		if !ok {
			return nil, fmt.Errorf("pin for unknown revision %d", number)
		}
		revs[i].Pins = append(revs[i].Pins, pin)
	}
	return revs, pins.Err()
}

func (s *Store) loadEntities(table, snapshotID string, pkg uint16) ([]Entity, error) {
	rows, err := s.db.Query(
		`SELECT branch, ordinal, external_id, culture_package, culture_offset, payload FROM `+table+`
		 WHERE snapshot_id = ? AND package = ? ORDER BY branch, ordinal`,
		snapshotID, pkg,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.Branch, &e.Offset, &e.ExternalID, &e.CulturePackage, &e.CultureOffset, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) loadRoutes(snapshotID string, pkg uint16) ([]Route, error) {
	rows, err := s.db.Query(
		`SELECT branch, module_package, module_offset, stem, leaf, kind, target, since FROM routes
		 WHERE snapshot_id = ? AND package = ? ORDER BY branch, id`,
		snapshotID, pkg,
	)
	if err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}
	defer rows.Close()

	var out []Route
	for rows.Next() {
		var r Route
		if err := rows.Scan(&r.Branch, &r.ModulePackage, &r.ModuleOffset, &r.Stem, &r.Leaf, &r.Kind, &r.Target, &r.Since); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadKeyframes(snapshotID string, pkg uint16) ([]Keyframe, error) {
	rows, err := s.db.Query(
		`SELECT field, branch, entity_key, seq, since, value FROM keyframes
		 WHERE snapshot_id = ? AND package = ? ORDER BY id`,
		snapshotID, pkg,
	)
	if err != nil {
		return nil, fmt.Errorf("keyframes: %w", err)
	}
	defer rows.Close()

	var out []Keyframe
	for rows.Next() {
		var k Keyframe
		if err := rows.Scan(&k.Field, &k.Branch, &k.Key, &k.Seq, &k.Since, &k.Value); err != nil {
			return nil, fmt.Errorf("scan keyframe: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
