package apiServer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-graph/internal/apiServer"
	"github.com/i5heu/ouroboros-graph/pkg/partition"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

func newTestServer(t *testing.T, opts ...apiServer.Option) (*httptest.Server, *partition.Router) {
	t.Helper()
	router := partition.NewRouter()
	srv := httptest.NewServer(apiServer.New(router, opts...))
	t.Cleanup(srv.Close)
	return srv, router
}

func TestCallRoundtripThroughHTTPCaller(t *testing.T) {
	srv, router := newTestServer(t)
	router.Register("echo", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	caller := partition.NewHTTPCaller(map[string]string{"peer": srv.URL}, nil)
	got, err := caller.Call(context.Background(), "peer", "echo", json.RawMessage(`{"hello":"world"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(got))
}

func TestCall_MethodErrorTravelsInBody(t *testing.T) {
	srv, router := newTestServer(t)
	router.Register("fails", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return nil, fmt.Errorf("record vanished: %w", types.ErrNotFound)
	})

	body := `{"id":"1","method":"fails","payload":null}`
	resp, err := http.Post(srv.URL+"/partition/call", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var callResp partition.CallResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&callResp))
	assert.Equal(t, "1", callResp.ID)
	assert.Contains(t, callResp.Error, "record vanished")
	assert.Nil(t, callResp.Result)
}

func TestCall_MissingMethodRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/partition/call", "application/json", strings.NewReader(`{"id":"1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCall_MalformedBodyRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/partition/call", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRejection(t *testing.T) {
	srv, router := newTestServer(t, apiServer.WithAuth(func(r *http.Request) error {
		if r.Header.Get("Authorization") != "Bearer sesame" {
			return fmt.Errorf("bad token")
		}
		return nil
	}))
	router.Register("echo", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	resp, err := http.Post(srv.URL+"/partition/call", "application/json", strings.NewReader(`{"id":"1","method":"echo"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/partition/call", strings.NewReader(`{"id":"1","method":"echo","payload":{}}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sesame")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
