package store

import "time"

// Snapshot is a saved extraction document.
type Snapshot struct {
	ID        int64
	Name      string
	Source    string
	Hash      string
	CreatedAt time.Time
	Modules   []*Module
}

// Module is one {path, items} entry of a snapshot.
type Module struct {
	ID      int64
	Ordinal int
	Path    string
	Items   []*Item
}

// Item is one top-level descriptor. Body holds its wire encoding.
type Item struct {
	ID      int64
	Ordinal int
	Name    string
	Kind    string
	Body    string
}

// SnapshotInfo summarizes a snapshot without loading its items.
type SnapshotInfo struct {
	Name        string
	Source      string
	Hash        string
	CreatedAt   time.Time
	ModuleCount int
	ItemCount   int
}
