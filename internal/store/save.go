package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveSnapshot writes a complete snapshot within a single transaction and
// returns its id. A snapshot without an id gets a fresh UUID; one without a
// timestamp is stamped with the current time.
//
// Insert order per package:
//  1. Stems
//  2. Branches, each followed by its revisions and their pins
//  3. Modules, symbols, articles
//  4. Routes
//  5. Keyframes
func (s *Store) SaveSnapshot(snap *Snapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO snapshots (id, created_at) VALUES (?, ?)",
		snap.ID, snap.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}

	for i := range snap.Packages {
		if err := savePackageTx(tx, snap.ID, &snap.Packages[i]); err != nil {
			return "", fmt.Errorf("save snapshot %s: %w", snap.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save snapshot %s: commit: %w", snap.ID, err)
	}
	return snap.ID, nil
}

func savePackageTx(tx *sql.Tx, snapshotID string, pkg *Package) error {
	if _, err := tx.Exec(
		"INSERT INTO packages (snapshot_id, idx, name) VALUES (?, ?, ?)",
		snapshotID, pkg.Index, pkg.Name,
	); err != nil {
		return fmt.Errorf("package %q: %w", pkg.Name, err)
	}

	// 1. Stems
	for stem, text := range pkg.Stems {
		if _, err := tx.Exec(
			"INSERT INTO stems (snapshot_id, package, stem, text) VALUES (?, ?, ?, ?)",
			snapshotID, pkg.Index, stem, text,
		); err != nil {
			return fmt.Errorf("package %q: stem %d: %w", pkg.Name, stem, err)
		}
	}

	// 2. Branches
	for _, b := range pkg.Branches {
		if err := insertBranchTx(tx, snapshotID, pkg.Index, &b); err != nil {
			return fmt.Errorf("package %q: branch %q: %w", pkg.Name, b.Name, err)
		}
	}

	// 3. Entities
	for i, entities := range [][]Entity{pkg.Modules, pkg.Symbols, pkg.Articles} {
		table := entityTables[i]
		for _, e := range entities {
			if err := insertEntityTx(tx, table, snapshotID, pkg.Index, &e); err != nil {
				return fmt.Errorf("package %q: %s %q: %w", pkg.Name, table, e.ExternalID, err)
			}
		}
	}

	// 4. Routes
	for _, r := range pkg.Routes {
		if err := insertRouteTx(tx, snapshotID, pkg.Index, &r); err != nil {
			return fmt.Errorf("package %q: route: %w", pkg.Name, err)
		}
	}

	// 5. Keyframes
	for _, k := range pkg.Keyframes {
		if err := insertKeyframeTx(tx, snapshotID, pkg.Index, &k); err != nil {
			return fmt.Errorf("package %q: keyframe %s: %w", pkg.Name, k.Field, err)
		}
	}
	return nil
}

func insertBranchTx(tx *sql.Tx, snapshotID string, pkg uint16, b *Branch) error {
	if _, err := tx.Exec(
		`INSERT INTO branches (snapshot_id, package, id, name, parent_branch, parent_revision)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshotID, pkg, b.ID, b.Name, b.ParentBranch, b.ParentRevision,
	); err != nil {
		return err
	}
	for _, rev := range b.Revisions {
		if _, err := tx.Exec(
			`INSERT INTO revisions (snapshot_id, package, branch, number,
				ring_modules, ring_symbols, ring_articles, hash, tag)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, pkg, b.ID, rev.Number,
			rev.RingModules, rev.RingSymbols, rev.RingArticles, rev.Hash, rev.Tag,
		); err != nil {
			return fmt.Errorf("revision %d: %w", rev.Number, err)
		}
		for _, pin := range rev.Pins {
			if _, err := tx.Exec(
				`INSERT INTO pins (snapshot_id, package, branch, revision, dep_package, dep_branch, dep_revision)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				snapshotID, pkg, b.ID, rev.Number, pin.Package, pin.Branch, pin.Revision,
			); err != nil {
				return fmt.Errorf("revision %d: pin %d: %w", rev.Number, pin.Package, err)
			}
		}
	}
	return nil
}

func insertEntityTx(tx *sql.Tx, table, snapshotID string, pkg uint16, e *Entity) error {
	_, err := tx.Exec(
		`INSERT INTO `+table+` (snapshot_id, package, branch, ordinal, external_id,
			culture_package, culture_offset, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, pkg, e.Branch, e.Offset, e.ExternalID,
		e.CulturePackage, e.CultureOffset, e.Payload,
	)
	return err
}

func insertRouteTx(tx *sql.Tx, snapshotID string, pkg uint16, r *Route) error {
	_, err := tx.Exec(
		`INSERT INTO routes (snapshot_id, package, branch, module_package, module_offset,
			stem, leaf, kind, target, since)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, pkg, r.Branch, r.ModulePackage, r.ModuleOffset,
		r.Stem, r.Leaf, r.Kind, r.Target, r.Since,
	)
	return err
}

func insertKeyframeTx(tx *sql.Tx, snapshotID string, pkg uint16, k *Keyframe) error {
	_, err := tx.Exec(
		`INSERT INTO keyframes (snapshot_id, package, field, branch, entity_key, seq, since, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, pkg, k.Field, k.Branch, k.Key, k.Seq, k.Since, k.Value,
	)
	return err
}
