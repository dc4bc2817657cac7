package merkletrie

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// rnode is one resolved or unresolved node of the trie held in memory. A
// node with a non-nil hash and no links/value loaded is "unresolved": its
// subtree exists only in the content-addressed cache (when one is
// configured), and resolve pulls it back in on demand.
type rnode struct {
	links    [256]*rnode
	hash     *chainhash.Hash
	hasValue bool
}

func newRnode() *rnode {
	return &rnode{}
}

// CacheRepo is the content-addressed persistence a trie resolves nodes
// from and flushes them back to (merkletrierepo.Pebble implements it).
type CacheRepo interface {
	Get(hash []byte) ([]byte, error)
	Set(hash []byte, buf []byte) error
	Close() error
}

// radixTrie is a 256-way byte trie; nodes are addressed by their own hash
// rather than by position, so identical subtrees (e.g. repeated short
// names) resolve to a single cache entry when a repo is configured. With
// no repo it behaves as a plain in-memory trie.
type radixTrie struct {
	store ValueStore
	repo  CacheRepo

	root    *rnode
	allFork bool // all-claims-in-merkle fork active: every active claim contributes, not just the best

	bufs *sync.Pool
	mtx  sync.Mutex
}

func newRadixTrie(store ValueStore, repo CacheRepo) *radixTrie {
	t := &radixTrie{
		store: store,
		repo:  repo,
		bufs: &sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
	t.root = newRnode()
	t.root.hash = &EmptyTrieHash
	return t
}

// RamTrie is the default MerkleTrie implementation: the whole resolved
// trie lives in memory and nothing is written to disk between restarts
// beyond the block-header hash that node.Repo and block.Repo already keep.
type RamTrie struct{ *radixTrie }

// NewRamTrie returns a RamTrie rooted at the empty trie.
func NewRamTrie(store ValueStore) *RamTrie {
	return &RamTrie{newRadixTrie(store, nil)}
}

// Close implements MerkleTrie.
func (t *RamTrie) Close() error { return nil }

// PersistentTrie is the disk-durable MerkleTrie implementation: resolved
// nodes are cached in a content-addressed pebble database, so a restart
// need only re-resolve the nodes a later MerkleHash call actually visits
// instead of replaying the whole name set.
type PersistentTrie struct{ *radixTrie }

// NewPersistentTrie returns a PersistentTrie backed by repo.
func NewPersistentTrie(store ValueStore, repo CacheRepo) *PersistentTrie {
	return &PersistentTrie{newRadixTrie(store, repo)}
}

// Close implements MerkleTrie.
func (t *PersistentTrie) Close() error { return t.repo.Close() }

// SetAllClaimsInMerkle switches the trie between single-best-claim and
// all-active-claims value contribution, per the all-claims-in-merkle fork
// (§4.9). Every name must be marked dirty by the caller afterward so the
// new mode is reflected in the next MerkleHash/MerkleHashAllClaims call.
func (t *radixTrie) SetAllClaimsInMerkle(active bool) {
	t.allFork = active
}

// SetRoot implements MerkleTrie.
func (t *radixTrie) SetRoot(hash chainhash.Hash, names [][]byte) error {
	t.mtx.Lock()
	t.root = newRnode()
	t.root.hash = &hash
	t.mtx.Unlock()

	if names == nil {
		return nil
	}

	for _, name := range names {
		t.Update(name, true)
	}
	if got := t.MerkleHash(); got != hash {
		return errors.Errorf("rebuilt root %s does not match expected %s", got, hash)
	}
	return nil
}

// Update implements MerkleTrie.
func (t *radixTrie) Update(key []byte, skipHashing bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	n := t.root
	for _, ch := range key {
		t.resolve(n)
		if n.links[ch] == nil {
			n.links[ch] = newRnode()
		}
		n.hash = nil
		n = n.links[ch]
	}

	t.resolve(n)
	if _, ok := t.store.Hash(key); ok {
		n.hasValue = true
	} else {
		n.hasValue = len(t.store.Hashes(key)) > 0
	}
	n.hash = nil
}

func (t *radixTrie) resolve(n *rnode) {
	if n.hash == nil || t.repo == nil {
		return
	}

	b, err := t.repo.Get(n.hash[:])
	if err != nil || b == nil {
		return
	}

	nb := nbuf(b)
	n.hasValue = nb.hasValue()
	for i := 0; i < nb.numChildren(); i++ {
		c := nb.child(i)
		child := newRnode()
		h := c.hash
		child.hash = &h
		n.links[c.edge] = child
	}
}

// MerkleHash implements MerkleTrie: the single-best-claim root.
func (t *radixTrie) MerkleHash() chainhash.Hash {
	return t.computeRoot(false)
}

// MerkleHashAllClaims is the all-claims-in-merkle variant used once that
// fork is active (§4.9): every active claim, not just the best, is folded
// into the root.
func (t *radixTrie) MerkleHashAllClaims() chainhash.Hash {
	return t.computeRoot(true)
}

func (t *radixTrie) computeRoot(allClaims bool) chainhash.Hash {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	wantFork := t.allFork
	t.allFork = allClaims || t.allFork
	defer func() { t.allFork = wantFork }()

	prefix := make([]byte, 0, 4096)
	if h := t.merkle(prefix, t.root); h != nil {
		return *h
	}
	return EmptyTrieHash
}

func (t *radixTrie) merkle(prefix []byte, n *rnode) *chainhash.Hash {
	if n.hash != nil {
		return n.hash
	}

	b := t.bufs.Get().(*bytes.Buffer)
	defer t.bufs.Put(b)
	b.Reset()

	var children []childEntry
	for ch := 0; ch < 256; ch++ {
		child := n.links[ch]
		if child == nil {
			continue
		}
		p := append(prefix, byte(ch))
		if h := t.merkle(p, child); h != nil {
			b.WriteByte(byte(ch))
			b.Write(h[:])
			children = append(children, childEntry{edge: byte(ch), hash: *h})
		}
	}

	var values []chainhash.Hash
	if n.hasValue {
		if t.allFork {
			values = t.store.Hashes(prefix)
		} else if h, ok := t.store.Hash(prefix); ok {
			values = []chainhash.Hash{h}
		}
		for _, v := range values {
			b.Write(v[:])
		}
	}

	if b.Len() == 0 {
		return nil
	}

	h := chainhash.DoubleHashH(b.Bytes())
	n.hash = &h
	if t.repo != nil {
		// the cache is an optimization; losing an entry only costs a
		// future resolve, not correctness of MerkleHash itself.
		_ = t.repo.Set(h[:], newNbuf(children, values))
	}
	return n.hash
}

// Flush implements MerkleTrie.
func (t *radixTrie) Flush() error {
	return nil
}
