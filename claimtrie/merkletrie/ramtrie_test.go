package merkletrie

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal ValueStore test double keyed by name, standing in
// for node.BaseManager.
type fakeStore struct {
	best map[string]chainhash.Hash
	all  map[string][]chainhash.Hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{best: make(map[string]chainhash.Hash), all: make(map[string][]chainhash.Hash)}
}

func (s *fakeStore) set(name string, hashes ...chainhash.Hash) {
	s.all[name] = hashes
	if len(hashes) > 0 {
		s.best[name] = hashes[0]
	} else {
		delete(s.best, name)
	}
}

func (s *fakeStore) Hash(name []byte) (chainhash.Hash, bool) {
	h, ok := s.best[string(name)]
	return h, ok
}

func (s *fakeStore) Hashes(name []byte) []chainhash.Hash {
	return s.all[string(name)]
}

func hashFor(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

// TestEmptyTrieHash covers spec scenario S1: a trie with no names at all
// hashes to the empty-trie sentinel.
func TestEmptyTrieHash(t *testing.T) {
	store := newFakeStore()
	trie := NewRamTrie(store)
	assert.Equal(t, EmptyTrieHash, trie.MerkleHash())
}

// TestSingleClaimRootFormula covers spec scenario S2 for a one-character
// name: the root hash is H('a' || H(valueHash)), the leaf hash prefixed by
// its edge byte.
func TestSingleClaimRootFormula(t *testing.T) {
	store := newFakeStore()
	value := hashFor(0xAB)
	store.set("a", value)

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)

	got := trie.MerkleHash()

	leafHash := H(value[:])
	want := H([]byte{'a'}, leafHash[:])
	assert.Equal(t, want, got)
}

func TestTwoSiblingClaimsBothContribute(t *testing.T) {
	store := newFakeStore()
	va := hashFor(1)
	vb := hashFor(2)
	store.set("a", va)
	store.set("b", vb)

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)
	trie.Update([]byte("b"), true)

	got := trie.MerkleHash()

	leafA := H(va[:])
	leafB := H(vb[:])
	want := H([]byte{'a'}, leafA[:], []byte{'b'}, leafB[:])
	assert.Equal(t, want, got)
}

func TestUpdateAfterSpendRemovesContribution(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)
	withClaim := trie.MerkleHash()
	assert.NotEqual(t, EmptyTrieHash, withClaim)

	store.set("a")
	trie.Update([]byte("a"), true)
	assert.Equal(t, EmptyTrieHash, trie.MerkleHash())
}

func TestMerkleHashIsStableWithoutFurtherUpdates(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)

	h1 := trie.MerkleHash()
	h2 := trie.MerkleHash()
	assert.Equal(t, h1, h2)
}

func TestAllClaimsInMerkleFoldsEveryActiveClaim(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1), hashFor(2))

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)

	best := trie.MerkleHash()
	all := trie.MerkleHashAllClaims()
	assert.NotEqual(t, best, all, "folding both claim hashes must differ from folding only the best")
}

func TestSetRootRebuildsAndVerifiesHash(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)
	root := trie.MerkleHash()

	fresh := NewRamTrie(store)
	err := fresh.SetRoot(root, [][]byte{[]byte("a")})
	require.NoError(t, err)
	assert.Equal(t, root, fresh.MerkleHash())
}

func TestSetRootRejectsMismatchedHash(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))

	trie := NewRamTrie(store)
	err := trie.SetRoot(hashFor(0xFF), [][]byte{[]byte("a")})
	assert.Error(t, err)
}

func TestGetProofRoundTripsThroughVerifyProof(t *testing.T) {
	store := newFakeStore()
	store.set("abc", hashFor(1))
	store.set("abd", hashFor(2))

	trie := NewRamTrie(store)
	trie.Update([]byte("abc"), true)
	trie.Update([]byte("abd"), true)

	root := trie.MerkleHash()

	proof := trie.GetProof([]byte("abc"))
	require.True(t, proof.Exists)
	require.NotNil(t, proof.Value)
	assert.True(t, VerifyProof(proof, root))
}

func TestGetProofOfMissingNameIsExclusion(t *testing.T) {
	store := newFakeStore()
	store.set("abc", hashFor(1))

	trie := NewRamTrie(store)
	trie.Update([]byte("abc"), true)
	root := trie.MerkleHash()

	proof := trie.GetProof([]byte("xyz"))
	assert.False(t, proof.Exists)
	assert.Nil(t, proof.Value)
	assert.True(t, VerifyProof(proof, root), "an exclusion proof must still verify against the real root")
}

func TestGetProofOfOverlappingPrefixIncludesAncestorValue(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))
	store.set("ab", hashFor(2))
	store.set("ac", hashFor(3))

	trie := NewRamTrie(store)
	trie.Update([]byte("a"), true)
	trie.Update([]byte("ab"), true)
	trie.Update([]byte("ac"), true)

	root := trie.MerkleHash()

	proof := trie.GetProof([]byte("ab"))
	require.True(t, proof.Exists)

	ancestor := -1
	for i, pn := range proof.Nodes {
		if pn.HasValue && len(pn.Values) > 0 {
			ancestor = i
			break
		}
	}
	require.GreaterOrEqual(t, ancestor, 0, "proof must carry \"a\"'s own value hash, not just the terminal node's")
	require.Less(t, ancestor, len(proof.Nodes)-1, "the ancestor with its own value must not be the terminal node")
	assert.True(t, VerifyProof(proof, root))

	proof.Nodes[ancestor].Values[0][0] ^= 0xFF
	assert.False(t, VerifyProof(proof, root), "corrupting the ancestor's value hash must break verification")
}

func TestPersistentTrieResolvesAcrossInstances(t *testing.T) {
	store := newFakeStore()
	store.set("a", hashFor(1))
	repo := newMemoryCacheRepo()

	trie := NewPersistentTrie(store, repo)
	trie.Update([]byte("a"), true)
	root := trie.MerkleHash()

	reopened := NewPersistentTrie(store, repo)
	err := reopened.SetRoot(root, nil)
	require.NoError(t, err)

	proof := reopened.GetProof([]byte("a"))
	require.True(t, proof.Exists, "proof must be rebuilt by resolving nodes from the cache repo")
	assert.True(t, VerifyProof(proof, root))
}

// memoryCacheRepo is a minimal in-memory CacheRepo test double.
type memoryCacheRepo struct {
	rows map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{rows: make(map[string][]byte)}
}

func (r *memoryCacheRepo) Get(hash []byte) ([]byte, error) {
	return r.rows[string(hash)], nil
}

func (r *memoryCacheRepo) Set(hash []byte, buf []byte) error {
	r.rows[string(hash)] = append([]byte(nil), buf...)
	return nil
}

func (r *memoryCacheRepo) Close() error { return nil }
