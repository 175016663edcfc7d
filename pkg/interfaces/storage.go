// Package interfaces defines the storage contract the graph layers are built
// on. The substrate guarantees atomicity per call only; there is no
// multi-operation transaction.
package interfaces

import (
	"time"

	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// TimePosition locates an address inside a time index.
type TimePosition struct {
	Timestamp int64 // unix nanoseconds
	Address   types.Address
}

// Storage is the content-addressed substrate: immutable entries keyed by
// hash, single-edge link operations, a small mutable pointer table and an
// ordered time keyspace. Each method is atomic on its own; nothing spanning
// two calls is.
type Storage interface {
	// Commit writes content under its hash and returns the address.
	// Committing identical content twice is a no-op.
	Commit(content []byte) (types.Address, error)
	// Get returns the content stored at addr, or types.ErrNotFound.
	Get(addr types.Address) ([]byte, error)
	// Delete removes the entry at addr. Deleting an absent entry is an error.
	Delete(addr types.Address) error
	// HashOf is the pure content-address derivation used by Commit.
	HashOf(content []byte) types.Address

	// CreateEdge links source to target under tag. The edge handle is
	// deterministic in (source, target, tag); re-creating an edge overwrites
	// it in place.
	CreateEdge(source, target types.Address, tag string) (types.Edge, error)
	// GetEdges returns all edges from source under tag.
	GetEdges(source types.Address, tag string) ([]types.Edge, error)
	// DeleteEdge removes the edge with the given handle and returns it.
	// Returns types.ErrIndexNotFound when no such edge exists.
	DeleteEdge(handle types.Address) (types.Edge, error)

	// SetPointer repoints base at target unconditionally (last write wins).
	SetPointer(base, target types.Address) error
	// GetPointer returns the current target of base, or types.ErrNotFound.
	GetPointer(base types.Address) (types.Address, error)
	// CasPointer repoints base at next only while it still points at expect,
	// failing with types.ErrConflict otherwise. The check and the write
	// happen inside one storage transaction.
	CasPointer(base, expect, next types.Address) error
	// DeletePointer removes the pointer record for base.
	DeletePointer(base types.Address) error

	// PutTimeEntry records (index, ts, addr) in the ordered time keyspace.
	// Entries are append-only; re-recording the same triple is a no-op.
	PutTimeEntry(index string, ts int64, addr types.Address) error
	// GetTimePosition returns the recorded position of addr in index.
	GetTimePosition(index string, addr types.Address) (TimePosition, bool, error)
	// ScanTimeReverse walks index newest-first, starting strictly after
	// (i.e. older than) before when non-nil, returning up to limit addresses.
	// limit <= 0 means no limit.
	ScanTimeReverse(index string, before *TimePosition, limit int) ([]types.Address, error)

	// Now is the local clock of this partition.
	Now() time.Time
}
