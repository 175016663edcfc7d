package graph_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graph "github.com/i5heu/ouroboros-graph"
	"github.com/i5heu/ouroboros-graph/pkg/partition"
	"github.com/i5heu/ouroboros-graph/pkg/relindex"
	"github.com/i5heu/ouroboros-graph/pkg/remotesync"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

func newGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(graph.Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { g.CloseWithoutContext() })
	return g
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := graph.New(graph.Config{})
	assert.Error(t, err)
}

func TestAccessorsBeforeStart(t *testing.T) {
	g, err := graph.New(graph.Config{Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	_, err = g.Records()
	assert.ErrorIs(t, err, graph.ErrNotStarted)
	_, err = g.Relationships()
	assert.ErrorIs(t, err, graph.ErrNotStarted)
}

func TestLifecycle(t *testing.T) {
	g := newGraph(t)

	records, err := g.Records()
	require.NoError(t, err)

	created, err := records.Create("note", json.RawMessage(`{"title":"hello"}`))
	require.NoError(t, err)

	read, err := records.Read(created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, string(read.Data))

	require.NoError(t, g.CloseWithoutContext())
	_, err = g.Records()
	assert.ErrorIs(t, err, graph.ErrClosed)

	// closing again is a no-op
	require.NoError(t, g.CloseWithoutContext())
}

// routerCaller delivers calls into another instance's router in process,
// standing in for the HTTP transport between two partitions.
type routerCaller struct {
	router *partition.Router
}

func (c routerCaller) Call(ctx context.Context, _, method string, payload json.RawMessage) (json.RawMessage, error) {
	return c.router.Call(ctx, partition.Local, method, payload)
}

func TestTwoPartitionSync(t *testing.T) {
	observation := newGraph(t)
	planning := newGraph(t)

	planningRouter, err := planning.Router()
	require.NoError(t, err)
	observationRouter, err := observation.Router()
	require.NoError(t, err)
	observationRouter.AddRemote("planning", routerCaller{router: planningRouter})

	// the observation partition owns an event fulfilling a remote commitment
	obsRecords, err := observation.Records()
	require.NoError(t, err)
	event, err := obsRecords.Create("economic_event", json.RawMessage(`{"action":"transfer"}`))
	require.NoError(t, err)

	commitment := types.HashOf([]byte("commitment owned by planning"))

	req := remotesync.SyncRequest{
		SourceType:         "commitment",
		Source:             commitment,
		DestType:           "economic_event",
		DestAddedAddresses: []types.Address{event.ID},
		Tag:                "fulfilled_by",
		ReciprocalTag:      "fulfills",
		TimeIndexName:      "commitments",
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	raw, err := observationRouter.Call(context.Background(), "planning", graph.MethodSyncIndex, payload)
	require.NoError(t, err)

	var wire remotesync.WireSyncResponse
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.Len(t, wire.IndexesCreated, 2)
	for _, res := range wire.IndexesCreated {
		assert.Empty(t, res.Error)
		assert.NotNil(t, res.Handle)
	}

	// the planning partition now sees the relationship from both ends
	planningRel, err := planning.Relationships()
	require.NoError(t, err)

	refs, err := planningRel.ReadIndex("commitment", commitment, "fulfilled_by", relindex.Unordered{})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, types.IdentityRef{Type: "economic_event", Key: event.ID}, refs[0])

	reverse, err := planningRel.ReadIndex("economic_event", event.ID, "fulfills", relindex.Unordered{})
	require.NoError(t, err)
	require.Len(t, reverse, 1)
	assert.Equal(t, commitment, reverse[0].Key)

	// planning can fetch the full record back from observation
	planningRouter.AddRemote("observation", routerCaller{router: observationRouter})
	results, err := planningRel.QueryIndex(context.Background(), "commitment", commitment, "fulfilled_by",
		relindex.Unordered{}, partition.NamedResolver{Name: "observation"}, graph.MethodReadRecord)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.JSONEq(t, `{"action":"transfer"}`, string(results[0].Record.Data))
}
