package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jward/apicheck/internal/descriptor"
)

// --- Snapshot writes ---

// SaveSnapshot stores doc under name, replacing any snapshot of that name.
// It returns false without writing when the stored document is identical.
func (s *Store) SaveSnapshot(name, source string, doc *descriptor.Document) (bool, error) {
	data, err := doc.Bytes()
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	hash := ComputeDocumentHash(data)

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	var (
		existingID   int64
		existingHash string
	)
	err = tx.QueryRow("SELECT id, hash FROM snapshots WHERE name = ?", name).Scan(&existingID, &existingHash)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, fmt.Errorf("save snapshot: lookup %q: %w", name, err)
	case existingHash == hash:
		return false, nil
	default:
		if err := deleteSnapshotTx(tx, existingID); err != nil {
			return false, fmt.Errorf("save snapshot: replace %q: %w", name, err)
		}
	}

	res, err := tx.Exec(
		"INSERT INTO snapshots (name, source, hash, created_at) VALUES (?, ?, ?, ?)",
		name, source, hash, time.Now().UTC().Truncate(time.Second),
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot: insert: %w", err)
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}

	for i, m := range doc.Modules {
		modID, err := insertModuleTx(tx, snapID, i, m.Path)
		if err != nil {
			return false, fmt.Errorf("save snapshot: module %s: %w", m.Path, err)
		}
		for j, d := range m.Items {
			if err := insertItemTx(tx, modID, j, d); err != nil {
				return false, fmt.Errorf("save snapshot: item %q: %w", d.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return true, nil
}

func insertModuleTx(tx *sql.Tx, snapID int64, ordinal int, path string) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO modules (snapshot_id, ordinal, path) VALUES (?, ?, ?)",
		snapID, ordinal, path,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertItemTx(tx *sql.Tx, modID int64, ordinal int, d *descriptor.Descriptor) error {
	body, err := marshalBody(d)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		"INSERT INTO items (module_id, ordinal, name, kind, body) VALUES (?, ?, ?, ?, ?)",
		modID, ordinal, d.Name, string(d.Kind), body,
	)
	return err
}

// DeleteSnapshot removes a snapshot and reports whether it existed.
func (s *Store) DeleteSnapshot(name string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("delete snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM snapshots WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete snapshot: lookup %q: %w", name, err)
	}
	if err := deleteSnapshotTx(tx, id); err != nil {
		return false, fmt.Errorf("delete snapshot %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete snapshot: commit: %w", err)
	}
	return true, nil
}

// deleteSnapshotTx removes a snapshot row and everything under it.
func deleteSnapshotTx(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(
		"DELETE FROM items WHERE module_id IN (SELECT id FROM modules WHERE snapshot_id = ?)", id,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM modules WHERE snapshot_id = ?", id); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM snapshots WHERE id = ?", id)
	return err
}

// --- Snapshot reads ---

// LoadSnapshot returns the named snapshot with its modules and items in
// their original order, or nil if there is none.
func (s *Store) LoadSnapshot(name string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.QueryRow(
		"SELECT id, name, source, hash, created_at FROM snapshots WHERE name = ?", name,
	).Scan(&snap.ID, &snap.Name, &snap.Source, &snap.Hash, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, ordinal, path FROM modules WHERE snapshot_id = ? ORDER BY ordinal", snap.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot modules: %w", err)
	}
	defer rows.Close()
	byID := make(map[int64]*Module)
	var ids []int64
	for rows.Next() {
		m := &Module{}
		if err := rows.Scan(&m.ID, &m.Ordinal, &m.Path); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		snap.Modules = append(snap.Modules, m)
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return snap, nil
	}

	items, err := s.db.Query(
		"SELECT id, module_id, ordinal, name, kind, body FROM items WHERE module_id IN ("+
			placeholderList(len(ids))+") ORDER BY module_id, ordinal",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot items: %w", err)
	}
	defer items.Close()
	for items.Next() {
		it := &Item{}
		var modID int64
		if err := items.Scan(&it.ID, &modID, &it.Ordinal, &it.Name, &it.Kind, &it.Body); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if m := byID[modID]; m != nil {
			m.Items = append(m.Items, it)
		}
	}
	return snap, items.Err()
}

// ListSnapshots returns a summary of every snapshot, ordered by name.
func (s *Store) ListSnapshots() ([]*SnapshotInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.name, s.source, s.hash, s.created_at,
		       (SELECT COUNT(*) FROM modules m WHERE m.snapshot_id = s.id),
		       (SELECT COUNT(*) FROM items i JOIN modules m ON i.module_id = m.id WHERE m.snapshot_id = s.id)
		FROM snapshots s ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var out []*SnapshotInfo
	for rows.Next() {
		info := &SnapshotInfo{}
		if err := rows.Scan(&info.Name, &info.Source, &info.Hash, &info.CreatedAt, &info.ModuleCount, &info.ItemCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Document reassembles the snapshot's wire document.
func (snap *Snapshot) Document() ([]byte, error) {
	type wireModule struct {
		Path  string            `json:"path"`
		Items []json.RawMessage `json:"items"`
	}
	type wireDoc struct {
		Modules []wireModule `json:"modules"`
	}

	doc := wireDoc{Modules: make([]wireModule, 0, len(snap.Modules))}
	for _, m := range snap.Modules {
		wm := wireModule{Path: m.Path, Items: make([]json.RawMessage, 0, len(m.Items))}
		for _, it := range m.Items {
			wm.Items = append(wm.Items, json.RawMessage(it.Body))
		}
		doc.Modules = append(doc.Modules, wm)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("snapshot %s: encode: %w", snap.Name, err)
	}
	return buf.Bytes(), nil
}
