// Package merkletrie implements the MerkleTrie component (C7): lazy
// Merkle-hash recomputation over dirty subtrees (§4.7), plus the pure
// hash-mixing primitives of C1 HashEngine (§4.1) that feed it.
package merkletrie

import (
	"encoding/binary"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// EmptyTrieHash is the sentinel Merkle hash of an empty trie (§6:
// "0x0000...0001"). A non-root node with no children and no value
// contributes nothing to its parent's hash, as if it were absent.
var EmptyTrieHash = chainhash.Hash{1}

// H double-SHA-256-hashes the concatenation of every part (C1 HashEngine).
func H(parts ...[]byte) chainhash.Hash {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return chainhash.DoubleHashH(buf)
}

// ValueHash implements §4.1's valueHash(outPoint, takeoverHeight): mixes an
// outpoint with the height at which its name last changed hands, so that a
// claim's contribution to the Merkle root changes across a takeover even
// though the claim itself did not.
func ValueHash(op wire.OutPoint, takeoverHeight int32) chainhash.Hash {
	h1 := chainhash.DoubleHashH(op.Hash[:])
	h2 := chainhash.DoubleHashH([]byte(strconv.FormatUint(uint64(op.Index), 10)))

	// Two's-complement, 8-byte big-endian with the high 4 bytes always
	// zero: takeoverHeight only ever populates the low 32 bits (§9,
	// "encoded as an 8-byte big-endian integer whose high 4 bytes are
	// zero", not a plain 4-byte integer).
	var heightBuf [8]byte
	binary.BigEndian.PutUint32(heightBuf[4:], uint32(takeoverHeight))
	h3 := chainhash.DoubleHashH(heightBuf[:])

	return H(h1[:], h2[:], h3[:])
}

// CompleteHash lifts a child hash through the characters of key between
// pos+1 and the end, one double-SHA-256 round per character, iterated from
// the last character down to pos+1 (§4.7's completeHash, used to fold a
// multi-byte radix-compressed edge down to what a naive byte-by-byte trie
// would have hashed).
func CompleteHash(partial chainhash.Hash, key []byte, pos int) chainhash.Hash {
	for i := len(key) - 1; i > pos; i-- {
		partial = H([]byte{key[i]}, partial[:])
	}
	return partial
}
