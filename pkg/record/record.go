// Package record implements the create/read/update/delete protocol for
// logical records on top of the identity layer. Records are JSON envelopes
// committed as immutable entries; the base pointer tracks the current one.
package record

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-graph/pkg/identity"
	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

// InitialEntryTag marks the informational base-to-entry edge written on
// create. Reads never follow it; it exists for external tooling inference.
const InitialEntryTag = "record_initial_entry"

// Record is a logical record as observed by a caller: its stable identity
// plus the currently referenced content.
type Record struct {
	ID           types.Address   `json:"id"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	EntryAddress types.Address   `json:"entryAddress"`
}

// MergeFunc combines the prior record body with an update payload into the
// new body. How the payload applies is up to the record type.
type MergeFunc func(prior, payload json.RawMessage) (json.RawMessage, error)

// ShallowMerge is the default merge strategy: top-level JSON object fields of
// the payload replace those of the prior body.
func ShallowMerge(prior, payload json.RawMessage) (json.RawMessage, error) {
	var base, patch map[string]json.RawMessage
	if err := json.Unmarshal(prior, &base); err != nil {
		return nil, fmt.Errorf("merge: prior body is not an object: %w", err)
	}
	if err := json.Unmarshal(payload, &patch); err != nil {
		return nil, fmt.Errorf("merge: payload is not an object: %w", err)
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}

type Service struct {
	storage interfaces.Storage
	ids     *identity.Store
}

func NewService(storage interfaces.Storage, ids *identity.Store) *Service {
	return &Service{storage: storage, ids: ids}
}

// Create commits the record entry, allocates its base pointer and links the
// two. The two commits and the edge are separate storage calls; a crash in
// between can leave an entry without a base.
func (s *Service) Create(entryType string, payload json.RawMessage) (Record, error) {
	content, err := encodeEnvelope(entryType, payload)
	if err != nil {
		return Record{}, err
	}

	entryAddr, err := s.storage.Commit(content)
	if err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}

	base, err := s.ids.CreateBase(entryAddr)
	if err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}

	if _, err := s.storage.CreateEdge(base, entryAddr, InitialEntryTag); err != nil {
		return Record{}, fmt.Errorf("create record: link initial entry: %w", err)
	}

	return Record{ID: base, Type: entryType, Data: payload, EntryAddress: entryAddr}, nil
}

// Read dereferences the base and decodes the current entry.
func (s *Service) Read(base types.Address) (Record, error) {
	target, err := s.ids.Dereference(base)
	if err != nil {
		return Record{}, err
	}

	env, err := s.getEnvelope(target)
	if err != nil {
		return Record{}, err
	}

	return Record{ID: base, Type: env.Type, Data: env.Data, EntryAddress: target}, nil
}

// Update applies merge to the record's current body and the payload. A new
// entry is committed and the base repointed only when the merged content
// hashes differently from the current target; identical content writes
// nothing, which keeps reciprocal-update cycles from looping forever. The
// repoint is guarded by a compare-and-swap against the dereferenced address
// and fails with types.ErrConflict when a concurrent update won.
func (s *Service) Update(base types.Address, payload json.RawMessage, merge MergeFunc) (Record, error) {
	if merge == nil {
		merge = ShallowMerge
	}

	target, err := s.ids.Dereference(base)
	if err != nil {
		return Record{}, err
	}

	prior, err := s.getEnvelope(target)
	if err != nil {
		return Record{}, err
	}

	merged, err := merge(prior.Data, payload)
	if err != nil {
		return Record{}, fmt.Errorf("update record %s: %w", base.String(), err)
	}

	content, err := encodeEnvelope(prior.Type, merged)
	if err != nil {
		return Record{}, err
	}

	newAddr := s.storage.HashOf(content)
	if newAddr != target {
		if _, err := s.storage.Commit(content); err != nil {
			return Record{}, fmt.Errorf("update record %s: %w", base.String(), err)
		}
		if err := s.ids.Repoint(base, target, newAddr); err != nil {
			return Record{}, fmt.Errorf("update record %s: %w", base.String(), err)
		}
	}

	return Record{ID: base, Type: prior.Type, Data: merged, EntryAddress: newAddr}, nil
}

// Delete removes a record's base pointer and current entry. A base that no
// longer dereferences returns (false, nil): deletion is idempotent, not an
// error. A target that decodes to a different type fails with
// types.ErrValidation and removes nothing. The paired removal of pointer and
// entry is the sole existence check; no deleted-flag is stored anywhere.
func (s *Service) Delete(base types.Address, entryType string) (bool, error) {
	target, err := s.ids.Dereference(base)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	env, err := s.getEnvelope(target)
	if err != nil || env.Type != entryType {
		return false, fmt.Errorf("incorrect record type specified for deletion of %s: %w", base.String(), types.ErrValidation)
	}

	if err := s.ids.RemoveBase(base); err != nil {
		return false, fmt.Errorf("delete record %s: %w", base.String(), err)
	}
	if err := s.storage.Delete(target); err != nil {
		return false, fmt.Errorf("delete record %s: %w", base.String(), err)
	}
	return true, nil
}

func (s *Service) getEnvelope(addr types.Address) (types.Envelope, error) {
	content, err := s.storage.Get(addr)
	if err != nil {
		return types.Envelope{}, err
	}

	var env types.Envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return types.Envelope{}, fmt.Errorf("entry %s: %s: %w", addr.String(), err, types.ErrDecode)
	}
	if env.Type == "" {
		return types.Envelope{}, fmt.Errorf("entry %s has no type tag: %w", addr.String(), types.ErrDecode)
	}
	return env, nil
}

func encodeEnvelope(entryType string, payload json.RawMessage) ([]byte, error) {
	content, err := json.Marshal(types.Envelope{Type: entryType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return content, nil
}
