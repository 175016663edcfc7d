package keyValStore

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// Edges are stored twice: once under the scannable forward key
// (source, tag, handle) and once under the handle alone so they can be
// deleted by handle without knowing source or tag.

func (k *KeyValStore) CreateEdge(source, target types.Address, tag string) (types.Edge, error) {
	edge := types.Edge{
		Handle:    types.EdgeHandle(source, target, tag),
		Source:    source,
		Target:    target,
		Tag:       tag,
		CreatedAt: k.Now(),
	}

	value, err := json.Marshal(edge)
	if err != nil {
		return types.Edge{}, fmt.Errorf("error encoding edge: %w", err)
	}

	err = k.badgerDB.Update(func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(source, tag, edge.Handle), value); err != nil {
			return err
		}
		return txn.Set(edgeHandleKey(edge.Handle), value)
	})
	if err != nil {
		return types.Edge{}, fmt.Errorf("error creating edge %s: %w", edge.Handle.String(), err)
	}
	return edge, nil
}

func (k *KeyValStore) GetEdges(source types.Address, tag string) ([]types.Edge, error) {
	var edges []types.Edge
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := edgeScanPrefix(source, tag)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var edge types.Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				return fmt.Errorf("error decoding edge: %w", err)
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning edges of %s: %w", source.String(), err)
	}
	return edges, nil
}

func (k *KeyValStore) DeleteEdge(handle types.Address) (types.Edge, error) {
	var edge types.Edge
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeHandleKey(handle))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edge)
		}); err != nil {
			return err
		}
		if err := txn.Delete(edgeKey(edge.Source, edge.Tag, edge.Handle)); err != nil {
			return err
		}
		return txn.Delete(edgeHandleKey(handle))
	})
	if err == badger.ErrKeyNotFound {
		return types.Edge{}, fmt.Errorf("edge %s: %w", handle.String(), types.ErrIndexNotFound)
	}
	if err != nil {
		return types.Edge{}, fmt.Errorf("error deleting edge %s: %w", handle.String(), err)
	}
	return edge, nil
}
