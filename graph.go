// Package graph is the main entry point of ouroboros-graph: record identity
// and relationship indexing on top of an immutable, content-addressed entry
// store.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/internal/keyValStore"
	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/partition"
	"github.com/i5heu/ouroboros-graph/pkg/record"
	"github.com/i5heu/ouroboros-graph/pkg/relindex"
	"github.com/i5heu/ouroboros-graph/pkg/remotesync"
	"github.com/i5heu/ouroboros-graph/pkg/timeindex"
)

var (
	ErrNotStarted = fmt.Errorf("graph: database not started")
	ErrClosed     = fmt.Errorf("graph: database closed")
)

// Method names served to other partitions through the router.
const (
	MethodReadRecord = "read_record"
	MethodSyncIndex  = "sync_index"
)

// Config configures a Graph instance. Only Paths[0] is used at the moment.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space threshold for on-disk operations.
	MinimumFreeGB uint
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
}

// Graph is the main handle. It owns the storage substrate and the lifecycle
// of the layers built on it.
type Graph struct {
	log    *slog.Logger
	config Config

	kvMu sync.RWMutex
	kv   *keyValStore.KeyValStore

	ids     *identity.Store
	records *record.Service
	rel     *relindex.Index
	times   *timeindex.Index
	syncer  *remotesync.Protocol
	router  *partition.Router

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}

// New constructs a handle. New does not perform heavy I/O; call Start to
// open the store and wire the components.
func New(conf Config) (*Graph, error) {
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	return &Graph{
		log:    conf.Logger,
		config: conf,
	}, nil
}

// Start opens the badger substrate and wires the identity, record, index and
// sync layers. Start is safe to call multiple times; only the first call has
// effect.
func (g *Graph) Start(ctx context.Context) error {
	var startErr error
	g.startOnce.Do(func() {
		dataRoot := g.config.Paths[0]
		if err := os.MkdirAll(filepath.Join(dataRoot, "kv"), 0o700); err != nil {
			startErr = fmt.Errorf("mkdir %s: %w", dataRoot, err)
			return
		}

		kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
			Paths:            []string{filepath.Join(dataRoot, "kv")},
			MinimumFreeSpace: int(g.config.MinimumFreeGB),
			Logger:           logrus.New(),
		})
		if err != nil {
			startErr = fmt.Errorf("init kv: %w", err)
			return
		}

		g.kvMu.Lock()
		g.kv = kv
		g.kvMu.Unlock()

		g.router = partition.NewRouter()
		g.ids = identity.NewStore(kv)
		g.records = record.NewService(kv, g.ids)
		g.times = timeindex.NewIndex(kv, g.ids)
		g.rel = relindex.NewIndex(kv, g.ids, g.router)
		g.syncer = remotesync.NewProtocol(kv, g.ids, g.rel, g.times, g.log)

		g.registerMethods()

		g.started.Store(true)
		g.log.Info("ouroboros-graph started", "path", dataRoot)
	})
	return startErr
}

// Run starts the instance, blocks until ctx is canceled, then performs a
// bounded graceful shutdown. It is a convenience for services.
func (g *Graph) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.Close(shutdownCtx)
}

// Close releases the store. Close is idempotent.
func (g *Graph) Close(ctx context.Context) error {
	var closeErr error
	g.closeOnce.Do(func() {
		g.kvMu.Lock()
		kv := g.kv
		g.kv = nil
		g.kvMu.Unlock()
		if kv != nil {
			if err := kv.Close(); err != nil {
				closeErr = fmt.Errorf("close kv: %w", err)
			}
		}
		g.log.Info("ouroboros-graph closed")
	})
	return closeErr
}

// CloseWithoutContext closes using a background context. Prefer Close(ctx).
func (g *Graph) CloseWithoutContext() error {
	return g.Close(context.Background())
}

func (g *Graph) guard() error {
	if !g.started.Load() {
		return ErrNotStarted
	}
	g.kvMu.RLock()
	kv := g.kv
	g.kvMu.RUnlock()
	if kv == nil {
		return ErrClosed
	}
	return nil
}

// Records exposes the record lifecycle API.
func (g *Graph) Records() (*record.Service, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.records, nil
}

// Identities exposes the identity layer.
func (g *Graph) Identities() (*identity.Store, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.ids, nil
}

// Relationships exposes the relationship index.
func (g *Graph) Relationships() (*relindex.Index, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.rel, nil
}

// TimeIndexes exposes the time-ordered secondary indexes.
func (g *Graph) TimeIndexes() (*timeindex.Index, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.times, nil
}

// Sync exposes the cross-partition reconciliation protocol.
func (g *Graph) Sync() (*remotesync.Protocol, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.syncer, nil
}

// Router exposes the partition call router, e.g. to wire remote peers.
func (g *Graph) Router() (*partition.Router, error) {
	if err := g.guard(); err != nil {
		return nil, err
	}
	return g.router, nil
}

// registerMethods exposes the methods other partitions may invoke.
func (g *Graph) registerMethods() {
	g.router.Register(MethodReadRecord, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req relindex.ByAddress
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode read_record payload: %w", err)
		}
		rec, err := g.records.Read(req.Address)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rec)
	})

	g.router.Register(MethodSyncIndex, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req remotesync.SyncRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode sync_index payload: %w", err)
		}
		resp := g.syncer.SyncIndex(req)
		return json.Marshal(resp.Wire())
	})
}
