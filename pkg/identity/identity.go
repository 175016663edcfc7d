// Package identity implements the base-pointer indirection that gives records
// a stable address across content changes, plus the deterministic identity
// derivation that lets independent partitions agree on an address for a record
// neither needs to hold.
package identity

import (
	"encoding/json"
	"fmt"

	"github.com/i5heu/ouroboros-graph/pkg/interfaces"
	"github.com/i5heu/ouroboros-graph/pkg/types"
)

type Store struct {
	storage interfaces.Storage
}

func NewStore(storage interfaces.Storage) *Store {
	return &Store{storage: storage}
}

// CreateBase allocates a stable base address for a record whose initial
// content lives at target, and points it there. The base address is derived
// from the initial target, so it never changes when the pointer is repointed
// later.
func (s *Store) CreateBase(target types.Address) (types.Address, error) {
	base := baseAddress(target)
	if err := s.storage.SetPointer(base, target); err != nil {
		return types.Address{}, fmt.Errorf("create base: %w", err)
	}
	return base, nil
}

// Dereference resolves a base address to the entry it currently points at.
func (s *Store) Dereference(base types.Address) (types.Address, error) {
	target, err := s.storage.GetPointer(base)
	if err != nil {
		return types.Address{}, fmt.Errorf("dereference %s: %w", base.String(), err)
	}
	return target, nil
}

// Repoint moves base from expect to next, failing with types.ErrConflict when
// a concurrent update already moved it.
func (s *Store) Repoint(base, expect, next types.Address) error {
	return s.storage.CasPointer(base, expect, next)
}

// RemoveBase deletes the pointer record of a base.
func (s *Store) RemoveBase(base types.Address) error {
	return s.storage.DeletePointer(base)
}

// CalculateIdentityAddress derives the identity address for (entryType, key).
// The derivation is pure: it hashes the canonical placeholder content, so two
// partitions compute the same address for the same external record without
// either holding its data.
func (s *Store) CalculateIdentityAddress(entryType string, key types.Address) types.Address {
	return s.storage.HashOf(identityContent(entryType, key))
}

// EnsureIdentity commits the identity placeholder entry for (entryType, key)
// if it does not exist yet and returns its address. Because the placeholder
// content is canonical, the committed address always equals
// CalculateIdentityAddress.
func (s *Store) EnsureIdentity(entryType string, key types.Address) (types.Address, error) {
	if key.IsZero() {
		return types.Address{}, fmt.Errorf("identity key for %q is zero: %w", entryType, types.ErrValidation)
	}
	addr, err := s.storage.Commit(identityContent(entryType, key))
	if err != nil {
		return types.Address{}, fmt.Errorf("ensure identity %q: %w", entryType, err)
	}
	return addr, nil
}

// ResolveIdentity reads the placeholder at addr back into a typed identity.
func (s *Store) ResolveIdentity(addr types.Address) (types.IdentityRef, error) {
	content, err := s.storage.Get(addr)
	if err != nil {
		return types.IdentityRef{}, fmt.Errorf("resolve identity %s: %w", addr.String(), err)
	}

	var ref types.IdentityRef
	if err := json.Unmarshal(content, &ref); err != nil {
		return types.IdentityRef{}, fmt.Errorf("identity %s: %s: %w", addr.String(), err, types.ErrDecode)
	}
	if ref.Type == "" || ref.Key.IsZero() {
		return types.IdentityRef{}, fmt.Errorf("identity %s has empty fields: %w", addr.String(), types.ErrDecode)
	}
	return ref, nil
}

func identityContent(entryType string, key types.Address) []byte {
	// json.Marshal of a fixed struct is deterministic, which makes the
	// placeholder content canonical across partitions.
	content, err := json.Marshal(types.IdentityRef{Type: entryType, Key: key})
	if err != nil {
		panic(err) // marshalling a struct of string+array cannot fail
	}
	return content
}

func baseAddress(target types.Address) types.Address {
	return types.HashOf(append([]byte("base:"), target.Bytes()...))
}
