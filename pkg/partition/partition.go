// Package partition models the boundary between independently-owned storage
// partitions. A Resolver names the partition a call should land in, a Caller
// delivers it, and a Router dispatches calls that target the local partition.
package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// Local is the reserved partition name addressing the local partition.
const Local = ""

// Resolver selects the partition a cross-partition call is sent to. The two
// variants are the local partition and a named remote one; an unresolvable
// target reports ok = false.
type Resolver interface {
	Partition() (name string, ok bool)
}

// LocalResolver targets the local partition.
type LocalResolver struct{}

func (LocalResolver) Partition() (string, bool) { return Local, true }

// NamedResolver targets the named remote partition.
type NamedResolver struct {
	Name string
}

func (r NamedResolver) Partition() (string, bool) { return r.Name, r.Name != Local }

// Caller delivers a method call to a partition. Implementations block until
// the call returns; cancellation and timeouts belong to the transport beneath.
type Caller interface {
	Call(ctx context.Context, partition, method string, payload json.RawMessage) (json.RawMessage, error)
}

// Handler serves one method of the local partition.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Router dispatches calls for the local partition from a method registry and
// forwards calls for named partitions to a per-partition remote Caller.
type Router struct {
	mu      sync.RWMutex
	methods map[string]Handler
	remotes map[string]Caller
}

func NewRouter() *Router {
	return &Router{
		methods: make(map[string]Handler),
		remotes: make(map[string]Caller),
	}
}

// Register exposes a local method under name.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = h
}

// AddRemote wires a named partition to the Caller reaching it.
func (r *Router) AddRemote(name string, c Caller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[name] = c
}

func (r *Router) Call(ctx context.Context, partition, method string, payload json.RawMessage) (json.RawMessage, error) {
	if partition == Local {
		r.mu.RLock()
		h, ok := r.methods[method]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("no local method %q: %w", method, types.ErrRemoteCall)
		}
		return h(ctx, payload)
	}

	r.mu.RLock()
	remote, ok := r.remotes[partition]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown partition %q: %w", partition, types.ErrRemoteCall)
	}
	return remote.Call(ctx, partition, method, payload)
}
