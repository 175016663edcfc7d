package remotesync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-graph/internal/keyValStore"
	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/relindex"
	"github.com/i5heu/ouroboros-graph/pkg/remotesync"
	"github.com/i5heu/ouroboros-graph/pkg/timeindex"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

type fixture struct {
	kv    *keyValStore.KeyValStore
	ids   *identity.Store
	rel   *relindex.Index
	times *timeindex.Index
	proto *remotesync.Protocol
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths: []string{t.TempDir()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	f := &fixture{kv: kv}
	f.ids = identity.NewStore(kv)
	f.rel = relindex.NewIndex(kv, f.ids, nil)
	f.times = timeindex.NewIndex(kv, f.ids)
	f.proto = remotesync.NewProtocol(kv, f.ids, f.rel, f.times, nil)
	return f
}

func syncRequest(added, removed []types.Address) remotesync.SyncRequest {
	return remotesync.SyncRequest{
		SourceType:           "commitment",
		Source:               types.HashOf([]byte("remote commitment")),
		DestType:             "fulfillment",
		DestAddedAddresses:   added,
		DestRemovedAddresses: removed,
		Tag:                  "fulfilled_by",
		ReciprocalTag:        "fulfills",
		TimeIndexName:        "commitments_by_time",
	}
}

func TestSyncIndex_CreatesEdgePairsAndTimeEntry(t *testing.T) {
	f := newFixture(t)

	destA := types.HashOf([]byte("fulfillment A"))
	destB := types.HashOf([]byte("fulfillment B"))

	req := syncRequest([]types.Address{destA, destB}, nil)
	resp := f.proto.SyncIndex(req)

	require.Len(t, resp.IndexesCreated, 4) // forward + reciprocal per address
	for _, res := range resp.IndexesCreated {
		assert.NoError(t, res.Err)
	}
	assert.Empty(t, resp.IndexesRemoved)

	refs, err := f.rel.ReadIndex("commitment", req.Source, "fulfilled_by", relindex.Unordered{})
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	reverse, err := f.rel.ReadIndex("fulfillment", destA, "fulfills", relindex.Unordered{})
	require.NoError(t, err)
	require.Len(t, reverse, 1)
	assert.Equal(t, req.Source, reverse[0].Key)

	// the source landed in the local time index, stamped at processing time
	sourceID := f.ids.CalculateIdentityAddress("commitment", req.Source)
	window, err := f.times.Query("commitments_by_time", nil, 10)
	require.NoError(t, err)
	assert.Contains(t, window, sourceID)
}

func TestSyncIndex_Idempotent(t *testing.T) {
	f := newFixture(t)

	dest := types.HashOf([]byte("fulfillment"))
	req := syncRequest([]types.Address{dest}, nil)

	first := f.proto.SyncIndex(req)
	second := f.proto.SyncIndex(req)

	for _, resp := range []remotesync.SyncResponse{first, second} {
		require.Len(t, resp.IndexesCreated, 2)
		for _, res := range resp.IndexesCreated {
			assert.NoError(t, res.Err)
		}
	}

	// edge membership is unchanged from a single call's outcome
	refs, err := f.rel.ReadIndex("commitment", req.Source, "fulfilled_by", relindex.Unordered{})
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestSyncIndex_PartialFailure(t *testing.T) {
	f := newFixture(t)

	good := types.HashOf([]byte("good fulfillment"))
	var malformed types.Address // zero

	resp := f.proto.SyncIndex(syncRequest([]types.Address{good, malformed}, nil))

	require.Len(t, resp.IndexesCreated, 4)
	var failures, successes int
	for _, res := range resp.IndexesCreated {
		if res.Err != nil {
			failures++
		} else {
			successes++
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 2, failures)

	// the valid destination is linked regardless of its malformed sibling
	refs, err := f.rel.ReadIndex("commitment", syncRequest(nil, nil).Source, "fulfilled_by", relindex.Unordered{})
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, good, refs[0].Key)
}

func TestSyncIndex_RemovesStaleEdges(t *testing.T) {
	f := newFixture(t)

	dest := types.HashOf([]byte("stale fulfillment"))
	f.proto.SyncIndex(syncRequest([]types.Address{dest}, nil))

	resp := f.proto.SyncIndex(syncRequest(nil, []types.Address{dest}))
	require.Len(t, resp.IndexesRemoved, 2)
	for _, res := range resp.IndexesRemoved {
		assert.NoError(t, res.Err)
	}

	refs, err := f.rel.ReadIndex("commitment", syncRequest(nil, nil).Source, "fulfilled_by", relindex.Unordered{})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSyncIndex_RemovingUnknownEdgeReportsIndexNotFound(t *testing.T) {
	f := newFixture(t)

	unknown := types.HashOf([]byte("never linked"))
	resp := f.proto.SyncIndex(syncRequest(nil, []types.Address{unknown}))

	require.Len(t, resp.IndexesRemoved, 1)
	assert.ErrorIs(t, resp.IndexesRemoved[0].Err, types.ErrIndexNotFound)
}

func TestSyncResponse_Wire(t *testing.T) {
	f := newFixture(t)

	good := types.HashOf([]byte("wire fulfillment"))
	var bad types.Address

	resp := f.proto.SyncIndex(syncRequest([]types.Address{good, bad}, nil))
	wire := resp.Wire()

	require.Len(t, wire.IndexesCreated, 4)
	var withHandle, withError int
	for _, res := range wire.IndexesCreated {
		if res.Handle != nil {
			withHandle++
		}
		if res.Error != "" {
			withError++
		}
	}
	assert.Equal(t, 2, withHandle)
	assert.Equal(t, 2, withError)
}
