package remotesync

import (
	"github.com/i5heu/ouroboros-graph/pkg/relindex"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// WireEdgeResult is the externally encodable form of a per-edge outcome:
// either the handle of the affected edge or an error string.
type WireEdgeResult struct {
	Handle *types.Address `json:"handle,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// WireSyncResponse is the response shape sent back across the partition
// boundary.
type WireSyncResponse struct {
	IndexesCreated []WireEdgeResult `json:"indexesCreated"`
	IndexesRemoved []WireEdgeResult `json:"indexesRemoved"`
}

// Wire converts internal results into the response schema.
func (r SyncResponse) Wire() WireSyncResponse {
	return WireSyncResponse{
		IndexesCreated: wireResults(r.IndexesCreated),
		IndexesRemoved: wireResults(r.IndexesRemoved),
	}
}

func wireResults(results []relindex.EdgeResult) []WireEdgeResult {
	out := make([]WireEdgeResult, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			out = append(out, WireEdgeResult{Error: res.Err.Error()})
			continue
		}
		handle := res.Edge.Handle
		out = append(out, WireEdgeResult{Handle: &handle})
	}
	return out
}
