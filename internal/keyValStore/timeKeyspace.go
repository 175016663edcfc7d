package keyValStore

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// The time keyspace orders addresses by big-endian unix-nano timestamps so a
// reverse badger iteration walks an index newest-first. The position record
// (index, addr) -> ts supports cursor lookup and sort-by-index.

func (k *KeyValStore) PutTimeEntry(index string, ts int64, addr types.Address) error {
	tsBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBuf, uint64(ts))

	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		if err := txn.Set(timeEntryKey(index, ts, addr), addr.Bytes()); err != nil {
			return err
		}
		return txn.Set(timePosKey(index, addr), tsBuf)
	})
	if err != nil {
		return fmt.Errorf("error appending %s to time index %q: %w", addr.String(), index, err)
	}
	return nil
}

func (k *KeyValStore) GetTimePosition(index string, addr types.Address) (interfaces.TimePosition, bool, error) {
	var pos interfaces.TimePosition
	found := false
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(timePosKey(index, addr))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("invalid time position record length: %d", len(val))
			}
			pos = interfaces.TimePosition{
				Timestamp: int64(binary.BigEndian.Uint64(val)),
				Address:   addr,
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return interfaces.TimePosition{}, false, fmt.Errorf("error reading time position of %s in %q: %w", addr.String(), index, err)
	}
	return pos, found, nil
}

func (k *KeyValStore) ScanTimeReverse(index string, before *interfaces.TimePosition, limit int) ([]types.Address, error) {
	var out []types.Address
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := timeScanPrefix(index)

		var seek []byte
		if before != nil {
			seek = timeEntryKey(index, before.Timestamp, before.Address)
		} else {
			// one past the largest possible key under this prefix
			seek = append(append([]byte{}, prefix...), 0xff)
			for i := 0; i < 72; i++ {
				seek = append(seek, 0xff)
			}
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if before != nil && string(key) >= string(timeEntryKey(index, before.Timestamp, before.Address)) {
				// reverse Seek lands on the cursor key itself; skip it and
				// anything newer
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}

			var addr types.Address
			if err := addr.FromBytes(key[len(key)-64:]); err != nil {
				return fmt.Errorf("malformed time index key: %w", err)
			}
			out = append(out, addr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning time index %q: %w", index, err)
	}
	return out, nil
}
