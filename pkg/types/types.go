// Package types holds the shared value types of ouroboros-graph: content
// addresses, edges, record envelopes and the error taxonomy used across all
// layers.
package types

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Hash is a SHA-512 content address.
type Hash [64]byte

// Address is the address of an entry, base pointer or identity placeholder.
// All addresses live in the same hash domain.
type Address = Hash

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h *Hash) FromBytes(b []byte) error {
	if len(b) != 64 {
		return fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// HashFromHex parses a hex-encoded SHA-512 address.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if err := h.FromBytes(b); err != nil {
		return h, err
	}
	return h, nil
}

// HashOf computes the content address of raw bytes. Pure and deterministic;
// every partition derives identical addresses from identical content.
func HashOf(content []byte) Hash {
	return sha512.Sum512(content)
}

// MarshalJSON encodes hashes as hex strings on the wire.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Edge is a directed, tagged relationship between two addresses. The handle is
// derived deterministically from (source, target, tag), so creating the same
// edge twice lands on the same handle instead of accumulating duplicates.
type Edge struct {
	Handle    Address   `json:"handle"`
	Source    Address   `json:"source"`
	Target    Address   `json:"target"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
}

// EdgeHandle derives the deterministic handle for an edge.
func EdgeHandle(source, target Address, tag string) Address {
	buf := make([]byte, 0, 128+len(tag))
	buf = append(buf, source[:]...)
	buf = append(buf, target[:]...)
	buf = append(buf, tag...)
	return HashOf(buf)
}

// Envelope is the stored shape of a record entry: a type tag plus the
// caller-defined document body.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// IdentityRef is a typed identity as exposed to callers: the entry type
// together with the stable key the identity was derived from.
type IdentityRef struct {
	Type string  `json:"type"`
	Key  Address `json:"key"`
}

var (
	// ErrNotFound signals a missing entry or a base that does not dereference.
	ErrNotFound = errors.New("graph: not found")
	// ErrDecode signals an entry that exists but does not decode to the
	// expected shape.
	ErrDecode = errors.New("graph: undecodable entry")
	// ErrValidation signals a type mismatch, e.g. deleting a record through
	// the wrong type.
	ErrValidation = errors.New("graph: validation failed")
	// ErrIndexNotFound signals a missing edge during an index mutation.
	ErrIndexNotFound = errors.New("graph: index entry not found")
	// ErrRemoteCall wraps transport failures of cross-partition calls.
	ErrRemoteCall = errors.New("graph: remote call failed")
	// ErrBadTimeIndex signals a structural failure of a time index, such as a
	// cursor that was never appended.
	ErrBadTimeIndex = errors.New("graph: bad time index")
	// ErrConflict signals a compare-and-swap repoint that lost against a
	// concurrent update.
	ErrConflict = errors.New("graph: conflicting update")
)
