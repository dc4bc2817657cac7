package merkletrie

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
)

func TestHIsDeterministicAndOrderSensitive(t *testing.T) {
	a := H([]byte("a"), []byte("b"))
	b := H([]byte("ab"))
	assert.Equal(t, a, b, "H concatenates its parts before hashing")

	c := H([]byte("b"), []byte("a"))
	assert.NotEqual(t, a, c)
}

func TestValueHashChangesAcrossTakeover(t *testing.T) {
	var txHash chainhash.Hash
	txHash[0] = 0x42
	op := wire.OutPoint{Hash: txHash, Index: 1}

	h1 := ValueHash(op, 100)
	h2 := ValueHash(op, 200)
	assert.NotEqual(t, h1, h2, "valueHash must depend on takeoverHeight")

	h1Again := ValueHash(op, 100)
	assert.Equal(t, h1, h1Again)
}

func TestCompleteHashFoldsCharactersDownToPos(t *testing.T) {
	leaf := H([]byte("leaf"))
	key := []byte("abc")

	folded := CompleteHash(leaf, key, -1)

	want := H([]byte{'a'}, func() []byte {
		h := H([]byte{'b'}, func() []byte {
			h2 := H([]byte{'c'}, leaf[:])
			return h2[:]
		}())
		return h[:]
	}())
	assert.Equal(t, want, folded)
}

func TestCompleteHashNoopWhenPosIsLastIndex(t *testing.T) {
	leaf := H([]byte("leaf"))
	key := []byte("abc")

	folded := CompleteHash(leaf, key, len(key)-1)
	assert.Equal(t, leaf, folded)
}
