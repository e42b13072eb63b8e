package store

import (
	"fmt"
)

// ListSnapshots returns every stored snapshot, newest first.
func (s *Store) ListSnapshots() ([]SnapshotInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at,
			(SELECT COUNT(*) FROM packages p WHERE p.snapshot_id = snapshots.id)
		 FROM snapshots ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Packages); err != nil {
			return nil, fmt.Errorf("list snapshots: scan: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSnapshot removes a snapshot and all its rows.
func (s *Store) DeleteSnapshot(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete snapshot %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	for _, t := range snapshotTables {
		if _, err := tx.Exec("DELETE FROM "+t.table+" WHERE "+t.column+" = ?", id); err != nil {
			return fmt.Errorf("delete snapshot %s: %s: %w", id, t.table, err)
		}
	}
	return tx.Commit()
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed.
func (s *Store) Prune(keep int) (int, error) {
	all, err := s.ListSnapshots()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for i := keep; i < len(all); i++ {
		if err := s.DeleteSnapshot(all[i].ID); err != nil {
			return removed, fmt.Errorf("prune snapshots: %w", err)
		}
		removed++
	}
	return removed, nil
}
