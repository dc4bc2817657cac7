package change

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaimIDIsStableAndDeterministic(t *testing.T) {
	var hash chainhash.Hash
	hash[0] = 0x11
	op := wire.OutPoint{Hash: hash, Index: 0}

	id1 := NewClaimID(op)
	id2 := NewClaimID(op)
	assert.Equal(t, id1, id2)
	assert.False(t, id1.IsZero())

	other := NewClaimID(wire.OutPoint{Hash: hash, Index: 1})
	assert.NotEqual(t, id1, other)
}

func TestClaimIDStringRoundTrip(t *testing.T) {
	var hash chainhash.Hash
	hash[0] = 0x22
	id := NewClaimID(wire.OutPoint{Hash: hash, Index: 3})

	s := id.String()
	assert.Len(t, s, ClaimIDSize*2)

	parsed, err := NewIDFromString(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestNewIDFromStringRejectsWrongLength(t *testing.T) {
	_, err := NewIDFromString("abcd")
	assert.Error(t, err)
}

func TestZeroClaimID(t *testing.T) {
	var id ClaimID
	assert.True(t, id.IsZero())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "AddClaim", AddClaim.String())
	assert.Equal(t, "UpdateClaim", UpdateClaim.String())
	assert.Equal(t, "SpendClaim", SpendClaim.String())
	assert.Equal(t, "AddSupport", AddSupport.String())
	assert.Equal(t, "SpendSupport", SpendSupport.String())
	assert.Equal(t, "Unknown", Type(0).String())
}
