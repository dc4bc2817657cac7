package merkletrie

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// nbuf is the on-disk encoding of a resolved trie node in the
// content-addressed persistent cache (merkletrierepo): a count-prefixed
// list of (edge byte, child hash) pairs followed by zero or more value
// hashes (more than one only when the all-claims-in-merkle fork is active,
// §4.9). It lets PersistentTrie rehydrate resolved nodes across
// restarts: a node's own hash is the cache key, and the child hashes read
// back out of nbuf are used as-is until a child is marked dirty.
type nbuf []byte

func newNbuf(children []childEntry, values []chainhash.Hash) nbuf {
	buf := make([]byte, 8, 8+33*len(children)+32*len(values))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(children)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(values)))
	for _, c := range children {
		buf = append(buf, c.edge)
		buf = append(buf, c.hash[:]...)
	}
	for _, v := range values {
		buf = append(buf, v[:]...)
	}
	return buf
}

type childEntry struct {
	edge byte
	hash chainhash.Hash
}

func (b nbuf) numChildren() int {
	if len(b) < 8 {
		return 0
	}
	return int(binary.BigEndian.Uint32(b[0:4]))
}

func (b nbuf) numValues() int {
	if len(b) < 8 {
		return 0
	}
	return int(binary.BigEndian.Uint32(b[4:8]))
}

func (b nbuf) child(i int) childEntry {
	off := 8 + i*33
	var e childEntry
	e.edge = b[off]
	copy(e.hash[:], b[off+1:off+33])
	return e
}

func (b nbuf) value(i int) chainhash.Hash {
	off := 8 + 33*b.numChildren() + i*32
	var h chainhash.Hash
	copy(h[:], b[off:off+32])
	return h
}

func (b nbuf) hasValue() bool {
	return b.numValues() > 0
}
