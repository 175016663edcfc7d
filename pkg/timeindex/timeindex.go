// Package timeindex maintains append-only, time-ordered secondary indexes
// over addresses, supporting reverse-chronological paginated retrieval.
package timeindex

import (
	"fmt"
	"sort"
	"time"

	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

type Index struct {
	storage interfaces.Storage
	ids     *identity.Store
}

func NewIndex(storage interfaces.Storage, ids *identity.Store) *Index {
	return &Index{storage: storage, ids: ids}
}

// Append ensures the identity placeholder for ref exists (create-if-absent)
// and records its address in indexName at ts. Entries are append-only; the
// same (index, address, timestamp) triple lands on the same key.
func (ix *Index) Append(indexName string, ref types.IdentityRef, ts time.Time) error {
	addr, err := ix.ids.EnsureIdentity(ref.Type, ref.Key)
	if err != nil {
		return fmt.Errorf("time index %q: %w", indexName, err)
	}
	return ix.AppendAddress(indexName, addr, ts)
}

// AppendAddress records an already-materialized address in indexName at ts.
func (ix *Index) AppendAddress(indexName string, addr types.Address, ts time.Time) error {
	if err := ix.storage.PutTimeEntry(indexName, ts.UnixNano(), addr); err != nil {
		return fmt.Errorf("%s: %w", err, types.ErrBadTimeIndex)
	}
	return nil
}

// Query returns up to limit addresses from indexName in reverse-chronological
// order. A non-nil cursor resumes strictly before (older than) the cursor's
// recorded position; a cursor that was never appended fails with
// types.ErrBadTimeIndex. limit <= 0 returns everything from the starting
// point.
func (ix *Index) Query(indexName string, cursor *types.Address, limit int) ([]types.Address, error) {
	var before *interfaces.TimePosition
	if cursor != nil {
		pos, found, err := ix.storage.GetTimePosition(indexName, *cursor)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err, types.ErrBadTimeIndex)
		}
		if !found {
			return nil, fmt.Errorf("cursor %s not present in time index %q: %w", cursor.String(), indexName, types.ErrBadTimeIndex)
		}
		before = &pos
	}

	addrs, err := ix.storage.ScanTimeReverse(indexName, before, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, types.ErrBadTimeIndex)
	}
	return addrs, nil
}

// SortByIndex orders addrs by their position in indexName, most recent first.
// Addresses without a recorded position sort last, keeping their input order.
func (ix *Index) SortByIndex(indexName string, addrs []types.Address) ([]types.Address, error) {
	type keyed struct {
		addr types.Address
		ts   int64
		ok   bool
	}

	keyedAddrs := make([]keyed, 0, len(addrs))
	for _, addr := range addrs {
		pos, found, err := ix.storage.GetTimePosition(indexName, addr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err, types.ErrBadTimeIndex)
		}
		keyedAddrs = append(keyedAddrs, keyed{addr: addr, ts: pos.Timestamp, ok: found})
	}

	sort.SliceStable(keyedAddrs, func(i, j int) bool {
		a, b := keyedAddrs[i], keyedAddrs[j]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ts > b.ts
	})

	out := make([]types.Address, len(keyedAddrs))
	for i, k := range keyedAddrs {
		out[i] = k.addr
	}
	return out, nil
}
