// Package relindex maintains bidirectional, tagged relationship edges between
// record identities, and the query surface over them. Forward and reciprocal
// edges are created and removed as independent single-edge operations; the
// substrate offers nothing to make the pair atomic, so partial pairs after a
// failure are a tolerated outcome reported per item.
package relindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/partition"
	"github.com/i5heu/ouroboros-graph/pkg/record"
	"github.com/i5heu/ouroboros-graph/pkg/timeindex"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// EdgeResult is the per-edge outcome of a batch index mutation.
type EdgeResult struct {
	Edge types.Edge `json:"edge,omitempty"`
	Err  error      `json:"-"`
}

// RecordResult is the per-item outcome of a full-record index query.
type RecordResult struct {
	Record record.Record
	Err    error
}

// ByAddress is the payload of record-read methods invoked across partitions.
type ByAddress struct {
	Address types.Address `json:"address"`
}

// Ordering arranges resolved index targets for presentation.
type Ordering interface {
	Sort(addrs []types.Address) ([]types.Address, error)
}

// ByTimeIndex orders addresses by their position in a time index, most
// recent first. This is the default ordering policy for index reads.
type ByTimeIndex struct {
	Times *timeindex.Index
	Name  string
}

func (o ByTimeIndex) Sort(addrs []types.Address) ([]types.Address, error) {
	return o.Times.SortByIndex(o.Name, addrs)
}

// Unordered leaves addresses in storage order.
type Unordered struct{}

func (Unordered) Sort(addrs []types.Address) ([]types.Address, error) {
	return addrs, nil
}

type Index struct {
	storage interfaces.Storage
	ids     *identity.Store
	caller  partition.Caller
}

// NewIndex builds the relationship index. caller delivers QueryIndex record
// fetches and may be nil when only ReadIndex/mutations are used.
func NewIndex(storage interfaces.Storage, ids *identity.Store, caller partition.Caller) *Index {
	return &Index{storage: storage, ids: ids, caller: caller}
}

// CreateIndex ensures identity placeholders for both endpoints and creates
// the forward edge (source, tag) and reciprocal edge (dest, reciprocalTag) as
// two independent operations. Each may fail on its own; both results are
// returned and neither is rolled back on the other's failure.
func (ix *Index) CreateIndex(sourceType string, source types.Address, destType string, dest types.Address, tag, reciprocalTag string) [2]EdgeResult {
	var results [2]EdgeResult

	sourceID, err := ix.ids.EnsureIdentity(sourceType, source)
	if err != nil {
		results[0].Err = err
		results[1].Err = err
		return results
	}
	destID, err := ix.ids.EnsureIdentity(destType, dest)
	if err != nil {
		results[0].Err = err
		results[1].Err = err
		return results
	}

	results[0].Edge, results[0].Err = ix.storage.CreateEdge(sourceID, destID, tag)
	results[1].Edge, results[1].Err = ix.storage.CreateEdge(destID, sourceID, reciprocalTag)
	return results
}

// DeleteIndex removes every edge between the two identities matching tag in
// the forward direction and reciprocalTag in the reverse direction, returning
// one result per removed edge. The identities themselves stay behind as
// markers of previously linked items.
func (ix *Index) DeleteIndex(sourceType string, source types.Address, destType string, dest types.Address, tag, reciprocalTag string) []EdgeResult {
	sourceID := ix.ids.CalculateIdentityAddress(sourceType, source)
	destID := ix.ids.CalculateIdentityAddress(destType, dest)

	results := ix.deleteMatching(sourceID, destID, tag)
	return append(results, ix.deleteMatching(destID, sourceID, reciprocalTag)...)
}

func (ix *Index) deleteMatching(source, target types.Address, tag string) []EdgeResult {
	edges, err := ix.storage.GetEdges(source, tag)
	if err != nil {
		return []EdgeResult{{Err: err}}
	}

	var results []EdgeResult
	for _, edge := range edges {
		if edge.Target != target {
			continue
		}
		var res EdgeResult
		res.Edge, res.Err = ix.storage.DeleteEdge(edge.Handle)
		results = append(results, res)
	}
	return results
}

// ReadIndex returns the typed identities referenced from base under tag,
// arranged by order. Resolution is fail-fast: the first broken reference
// aborts the whole read. This strictness leans on index and data staying
// mutually consistent.
func (ix *Index) ReadIndex(baseType string, base types.Address, tag string, order Ordering) ([]types.IdentityRef, error) {
	addrs, err := ix.readTargets(baseType, base, tag, order)
	if err != nil {
		return nil, err
	}

	refs := make([]types.IdentityRef, 0, len(addrs))
	for _, addr := range addrs {
		ref, err := ix.ids.ResolveIdentity(addr)
		if err != nil {
			return nil, fmt.Errorf("read index %q: %w", tag, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// QueryIndex performs the ReadIndex traversal but fetches every referenced
// record in full by invoking readMethod in the partition selected by
// resolver. Failures are per item: one broken target does not abort the
// others.
func (ix *Index) QueryIndex(ctx context.Context, baseType string, base types.Address, tag string, order Ordering, resolver partition.Resolver, readMethod string) ([]RecordResult, error) {
	addrs, err := ix.readTargets(baseType, base, tag, order)
	if err != nil {
		return nil, err
	}

	results := make([]RecordResult, 0, len(addrs))
	for _, addr := range addrs {
		results = append(results, ix.fetchRecord(ctx, addr, resolver, readMethod))
	}
	return results, nil
}

// QueryTimeIndexRecords fetches full records for a reverse-chronological
// window of a time index, with the same per-item failure semantics as
// QueryIndex.
func (ix *Index) QueryTimeIndexRecords(ctx context.Context, times *timeindex.Index, indexName string, cursor *types.Address, limit int, resolver partition.Resolver, readMethod string) ([]RecordResult, error) {
	addrs, err := times.Query(indexName, cursor, limit)
	if err != nil {
		return nil, err
	}

	results := make([]RecordResult, 0, len(addrs))
	for _, addr := range addrs {
		results = append(results, ix.fetchRecord(ctx, addr, resolver, readMethod))
	}
	return results, nil
}

func (ix *Index) readTargets(baseType string, base types.Address, tag string, order Ordering) ([]types.Address, error) {
	indexAddr := ix.ids.CalculateIdentityAddress(baseType, base)
	edges, err := ix.storage.GetEdges(indexAddr, tag)
	if err != nil {
		return nil, fmt.Errorf("read index %q: %w", tag, err)
	}

	addrs := make([]types.Address, 0, len(edges))
	for _, edge := range edges {
		addrs = append(addrs, edge.Target)
	}

	if order == nil {
		return addrs, nil
	}
	sorted, err := order.Sort(addrs)
	if err != nil {
		return nil, fmt.Errorf("order index %q: %w", tag, err)
	}
	return sorted, nil
}

func (ix *Index) fetchRecord(ctx context.Context, identityAddr types.Address, resolver partition.Resolver, readMethod string) RecordResult {
	ref, err := ix.ids.ResolveIdentity(identityAddr)
	if err != nil {
		return RecordResult{Err: err}
	}

	name, ok := resolver.Partition()
	if !ok {
		return RecordResult{Err: fmt.Errorf("no partition resolved for %q: %w", ref.Type, types.ErrRemoteCall)}
	}

	payload, err := json.Marshal(ByAddress{Address: ref.Key})
	if err != nil {
		return RecordResult{Err: err}
	}

	if ix.caller == nil {
		return RecordResult{Err: fmt.Errorf("no caller wired for partition %q: %w", name, types.ErrRemoteCall)}
	}
	raw, err := ix.caller.Call(ctx, name, readMethod, payload)
	if err != nil {
		return RecordResult{Err: err}
	}

	var rec record.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RecordResult{Err: fmt.Errorf("decode record from partition %q: %s: %w", name, err, types.ErrDecode)}
	}
	return RecordResult{Record: rec}
}
