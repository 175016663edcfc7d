package types_test

import (
	"crypto/sha512"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-graph/pkg/types"
)

func TestHashOf(t *testing.T) {
	content := []byte("hello world")
	assert.Equal(t, types.Hash(sha512.Sum512(content)), types.HashOf(content))
}

func TestHash_HexRoundtrip(t *testing.T) {
	h := types.HashOf([]byte("some content"))

	parsed, err := types.HashFromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestHashFromHex_Invalid(t *testing.T) {
	_, err := types.HashFromHex("not hex")
	assert.Error(t, err)

	_, err = types.HashFromHex("abcd") // too short
	assert.Error(t, err)
}

func TestHash_JSONRoundtrip(t *testing.T) {
	h := types.HashOf([]byte("json me"))

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var decoded types.Hash
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, h, decoded)
}

func TestHash_IsZero(t *testing.T) {
	var zero types.Hash
	assert.True(t, zero.IsZero())
	assert.False(t, types.HashOf([]byte("x")).IsZero())
}

func TestEdgeHandle_Deterministic(t *testing.T) {
	source := types.HashOf([]byte("source"))
	target := types.HashOf([]byte("target"))

	first := types.EdgeHandle(source, target, "knows")
	second := types.EdgeHandle(source, target, "knows")
	assert.Equal(t, first, second)

	// every component participates in the derivation
	assert.NotEqual(t, first, types.EdgeHandle(target, source, "knows"))
	assert.NotEqual(t, first, types.EdgeHandle(source, target, "knew"))
}
