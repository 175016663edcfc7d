// Package keyValStore implements the content-addressed storage substrate on
// top of badger. It owns four keyspaces: immutable entries keyed by content
// hash, a mutable pointer table, tagged edges, and an ordered time keyspace.
// Every exported method maps onto a single badger transaction.
package keyValStore

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

var log *logrus.Logger

// Keyspace prefixes. Addresses are fixed 64 bytes, so keys are parsed
// positionally; variable-length segments (tags, index names) carry a 2-byte
// length prefix to keep prefix scans unambiguous.
const (
	prefixEntry      = 'c'
	prefixPointer    = 'p'
	prefixEdge       = 'e'
	prefixEdgeHandle = 'h'
	prefixTimeEntry  = 't'
	prefixTimePos    = 'q'
)

type StoreConfig struct {
	Paths            []string // only the first path is used at the moment
	MinimumFreeSpace int      // in GB
	Logger           *logrus.Logger
}

type KeyValStore struct {
	config   StoreConfig
	badgerDB *badger.DB
}

var _ interfaces.Storage = (*KeyValStore)(nil)

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if err := config.checkConfig(); err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Paths[0], err)
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func (k *KeyValStore) Close() error {
	if err := k.Clean(); err != nil {
		log.Warnf("error cleaning db on close: %v", err)
	}
	return k.badgerDB.Close()
}

func (k *KeyValStore) Clean() error {
	if err := k.badgerDB.Sync(); err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	if err := k.badgerDB.Flatten(runtime.NumCPU()); err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}

	if err := k.badgerDB.RunValueLogGC(0.1); err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("error cleaning db: %w", err)
	}

	return nil
}

func (k *KeyValStore) HashOf(content []byte) types.Address {
	return types.HashOf(content)
}

func (k *KeyValStore) Now() time.Time {
	return time.Now().UTC()
}

// Commit writes content at its hash. Content is lzma-compressed on disk; the
// address is always the hash of the raw bytes.
func (k *KeyValStore) Commit(content []byte) (types.Address, error) {
	addr := types.HashOf(content)
	compressed, err := compressWithLzma(content)
	if err != nil {
		return types.Address{}, fmt.Errorf("error compressing entry: %w", err)
	}

	err = k.badgerDB.Update(func(txn *badger.Txn) error {
		key := entryKey(addr)
		if _, err := txn.Get(key); err == nil {
			return nil // identical content already present
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, compressed)
	})
	if err != nil {
		return types.Address{}, fmt.Errorf("error committing entry %s: %w", addr.String(), err)
	}
	return addr, nil
}

func (k *KeyValStore) Get(addr types.Address) ([]byte, error) {
	var compressed []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(addr))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("entry %s: %w", addr.String(), types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading entry %s: %w", addr.String(), err)
	}

	content, err := decompressWithLzma(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing entry %s: %w", addr.String(), err)
	}
	return content, nil
}

func (k *KeyValStore) Delete(addr types.Address) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		key := entryKey(addr)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("entry %s: %w", addr.String(), types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("error deleting entry %s: %w", addr.String(), err)
	}
	return nil
}

func (k *KeyValStore) SetPointer(base, target types.Address) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(pointerKey(base), target.Bytes())
	})
	if err != nil {
		return fmt.Errorf("error setting pointer %s: %w", base.String(), err)
	}
	return nil
}

func (k *KeyValStore) GetPointer(base types.Address) (types.Address, error) {
	var target types.Address
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pointerKey(base))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return target.FromBytes(val)
		})
	})
	if err == badger.ErrKeyNotFound {
		return types.Address{}, fmt.Errorf("pointer %s: %w", base.String(), types.ErrNotFound)
	}
	if err != nil {
		return types.Address{}, fmt.Errorf("error reading pointer %s: %w", base.String(), err)
	}
	return target, nil
}

// CasPointer repoints base only while it still references expect. The read
// and the write share one badger transaction, which is the only atomicity the
// substrate offers.
func (k *KeyValStore) CasPointer(base, expect, next types.Address) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pointerKey(base))
		if err != nil {
			return err
		}
		var current types.Address
		if err := item.Value(func(val []byte) error {
			return current.FromBytes(val)
		}); err != nil {
			return err
		}
		if current != expect {
			return types.ErrConflict
		}
		return txn.Set(pointerKey(base), next.Bytes())
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("pointer %s: %w", base.String(), types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("error repointing %s: %w", base.String(), err)
	}
	return nil
}

func (k *KeyValStore) DeletePointer(base types.Address) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		key := pointerKey(base)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("pointer %s: %w", base.String(), types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("error deleting pointer %s: %w", base.String(), err)
	}
	return nil
}

func entryKey(addr types.Address) []byte {
	return append([]byte{prefixEntry}, addr.Bytes()...)
}

func pointerKey(base types.Address) []byte {
	return append([]byte{prefixPointer}, base.Bytes()...)
}

func lengthPrefixed(s string) []byte {
	buf := make([]byte, 2, 2+len(s))
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func edgeScanPrefix(source types.Address, tag string) []byte {
	key := make([]byte, 0, 1+64+2+len(tag))
	key = append(key, prefixEdge)
	key = append(key, source.Bytes()...)
	key = append(key, lengthPrefixed(tag)...)
	return key
}

func edgeKey(source types.Address, tag string, handle types.Address) []byte {
	return append(edgeScanPrefix(source, tag), handle.Bytes()...)
}

func edgeHandleKey(handle types.Address) []byte {
	return append([]byte{prefixEdgeHandle}, handle.Bytes()...)
}

func timeScanPrefix(index string) []byte {
	return append([]byte{prefixTimeEntry}, lengthPrefixed(index)...)
}

func timeEntryKey(index string, ts int64, addr types.Address) []byte {
	key := timeScanPrefix(index)
	tsBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBuf, uint64(ts))
	key = append(key, tsBuf...)
	return append(key, addr.Bytes()...)
}

func timePosKey(index string, addr types.Address) []byte {
	key := append([]byte{prefixTimePos}, lengthPrefixed(index)...)
	return append(key, addr.Bytes()...)
}
