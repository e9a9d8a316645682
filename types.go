package apicheck

import (
	"github.com/jward/apicheck/internal/descriptor"
	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/store"
)

// Public type aliases for the internal types used in the Checker API.
// These are Go type aliases (=); no conversion is needed.

type Document = descriptor.Document
type Module = descriptor.Module
type Descriptor = descriptor.Descriptor
type Tree = diff.Tree
type Report = diff.Report
type Change = diff.Change
type Store = store.Store
type Snapshot = store.Snapshot
type SnapshotInfo = store.SnapshotInfo
