package partition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// CallRequest is the wire shape of a cross-partition call.
type CallRequest struct {
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// CallResponse carries either the method result or an error string.
type CallResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HTTPCaller reaches named partitions over JSON-over-HTTP. The base URL per
// partition comes from the peer map of the daemon configuration.
type HTTPCaller struct {
	peers  map[string]string // partition name -> base URL
	client *http.Client
}

func NewHTTPCaller(peers map[string]string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCaller{peers: peers, client: client}
}

func (c *HTTPCaller) Call(ctx context.Context, partition, method string, payload json.RawMessage) (json.RawMessage, error) {
	baseURL, ok := c.peers[partition]
	if !ok {
		return nil, fmt.Errorf("no peer configured for partition %q: %w", partition, types.ErrRemoteCall)
	}

	body, err := json.Marshal(CallRequest{
		ID:      uuid.NewString(),
		Method:  method,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/partition/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build call to %q: %w", partition, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call partition %q: %s: %w", partition, err, types.ErrRemoteCall)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %q: %s: %w", partition, err, types.ErrRemoteCall)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("partition %q answered %d: %w", partition, resp.StatusCode, types.ErrRemoteCall)
	}

	var callResp CallResponse
	if err := json.Unmarshal(raw, &callResp); err != nil {
		return nil, fmt.Errorf("decode response from %q: %s: %w", partition, err, types.ErrRemoteCall)
	}
	if callResp.Error != "" {
		return nil, fmt.Errorf("partition %q: %s: %w", partition, callResp.Error, types.ErrRemoteCall)
	}
	return callResp.Result, nil
}
