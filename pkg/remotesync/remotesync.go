// Package remotesync implements the cross-partition reconciliation protocol.
// A remote partition that owns a relationship drives SyncIndex on this one to
// keep the local index of that relationship current.
package remotesync

import (
	"fmt"
	"log/slog"

	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/relindex"
	"github.com/i5heu/ouroboros-graph/pkg/timeindex"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// SyncRequest is the wire-level request of the protocol.
type SyncRequest struct {
	SourceType           string          `json:"sourceType"`
	Source               types.Address   `json:"source"`
	DestType             string          `json:"destType"`
	DestAddedAddresses   []types.Address `json:"destAddedAddresses"`
	DestRemovedAddresses []types.Address `json:"destRemovedAddresses"`
	Tag                  string          `json:"tag"`
	ReciprocalTag        string          `json:"reciprocalTag"`
	TimeIndexName        string          `json:"timeIndexName"`
}

// SyncResponse aggregates per-address outcomes. The call as a whole never
// fails; callers inspect the collections to detect partial failure.
type SyncResponse struct {
	IndexesCreated []relindex.EdgeResult `json:"indexesCreated"`
	IndexesRemoved []relindex.EdgeResult `json:"indexesRemoved"`
}

type Protocol struct {
	storage interfaces.Storage
	ids     *identity.Store
	rel     *relindex.Index
	times   *timeindex.Index
	log     *slog.Logger
}

func NewProtocol(storage interfaces.Storage, ids *identity.Store, rel *relindex.Index, times *timeindex.Index, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{storage: storage, ids: ids, rel: rel, times: times, log: logger}
}

// SyncIndex reconciles the local index of a remotely-owned relationship:
// edge pairs are created for every added address, the source is appended to
// the local time index, and edge pairs are removed for every removed address.
// The steps run in order but share no atomicity; the protocol is safe to
// re-drive with the same inputs (at-least-once), since identity placeholders
// and edge handles are deterministic.
func (p *Protocol) SyncIndex(req SyncRequest) SyncResponse {
	var resp SyncResponse

	// ensure a local placeholder for the remote origin record before
	// anything links to it
	if _, err := p.ids.EnsureIdentity(req.SourceType, req.Source); err != nil {
		for range req.DestAddedAddresses {
			resp.IndexesCreated = append(resp.IndexesCreated, relindex.EdgeResult{Err: err})
		}
		for range req.DestRemovedAddresses {
			resp.IndexesRemoved = append(resp.IndexesRemoved, relindex.EdgeResult{Err: err})
		}
		return resp
	}

	for _, dest := range req.DestAddedAddresses {
		created := p.rel.CreateIndex(req.SourceType, req.Source, req.DestType, dest, req.Tag, req.ReciprocalTag)
		resp.IndexesCreated = append(resp.IndexesCreated, created[:]...)
	}

	// The source is stamped with this partition's clock at processing time:
	// indexing time, not the remote record's creation or update time. The
	// remote's own timestamp is not part of the request.
	if req.TimeIndexName != "" {
		ts := p.storage.Now()
		if err := p.times.Append(req.TimeIndexName, types.IdentityRef{Type: req.SourceType, Key: req.Source}, ts); err != nil {
			p.log.Warn("time index append failed during sync",
				"index", req.TimeIndexName, "source", req.Source.String(), "error", err)
		}
	}

	for _, dest := range req.DestRemovedAddresses {
		removed := p.rel.DeleteIndex(req.SourceType, req.Source, req.DestType, dest, req.Tag, req.ReciprocalTag)
		if len(removed) == 0 {
			removed = []relindex.EdgeResult{{Err: fmt.Errorf("no edges between %s and %s: %w", req.Source.String(), dest.String(), types.ErrIndexNotFound)}}
		}
		resp.IndexesRemoved = append(resp.IndexesRemoved, removed...)
	}

	return resp
}
