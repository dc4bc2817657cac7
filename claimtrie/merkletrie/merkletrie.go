package merkletrie

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MerkleTrie is the C7 component: it owns the 256-way byte trie whose
// root hash is the claim-trie Merkle root committed into each block header
// (§4.7). Callers mark names dirty via Update as claims/supports/takeovers
// change them; the hash of any untouched subtree is never recomputed.
type MerkleTrie interface {
	// MerkleHash returns the root hash under the single-best-claim rule,
	// recomputing any dirty subtrees first (lazily, per §4.7).
	MerkleHash() chainhash.Hash

	// MerkleHashAllClaims is the root hash once the all-claims-in-merkle
	// fork (§4.9) is active: every active claim contributes, not just
	// the best one per name.
	MerkleHashAllClaims() chainhash.Hash

	// GetProof returns a Merkle inclusion (or exclusion) proof for name.
	GetProof(name []byte) Proof

	// Update marks name (and every ancestor prefix of it) dirty; hashes
	// are recomputed by the next MerkleHash call. The radixTrie
	// implementations ignore skipHashing.
	Update(name []byte, skipHashing bool)

	// SetRoot replaces the trie with one whose root hash is hash. With
	// names nil the root hash is set as given and nothing is checked;
	// otherwise the trie is rebuilt from exactly names and an error is
	// returned if the rebuilt MerkleHash differs from hash.
	SetRoot(hash chainhash.Hash, names [][]byte) error

	// Flush persists any resolved nodes the implementation caches.
	Flush() error

	// Close releases resources held by the trie.
	Close() error
}

// ValueStore supplies MerkleTrie with the value hash(es) a name should
// contribute to the Merkle root, and is implemented by the node package so
// merkletrie never needs to know about claims, supports or takeovers.
type ValueStore interface {
	// Hash returns the single best claim's hash for name, or false if
	// name currently has no active claim (an empty leaf contributes
	// nothing to the trie).
	Hash(name []byte) (chainhash.Hash, bool)

	// Hashes returns every active claim's hash for name in §3's strict
	// weak order, used only once the all-claims-in-merkle fork (§4.9)
	// is active.
	Hashes(name []byte) []chainhash.Hash
}

// ProofNode is one step of a Merkle inclusion proof (§4.7): the hashes of
// the sibling children at this node, plus which child (if any) the proof
// continues down through. Every ancestor that itself carries a claim (not
// just the terminal node) records that claim's value hash(es) here, so a
// name whose prefix is also claimed (e.g. proving "ab" when "a" is a claim)
// still verifies.
type ProofNode struct {
	Children []ProofChild
	HasValue bool
	Values   []chainhash.Hash // this node's own value hash(es), folded the same way merkle() does; nil when HasValue is false
	NextChar int              // index into Children.Char the proof descends through; -1 at the terminal node
}

// ProofChild is one (edge character, child hash) pair recorded at a
// ProofNode. Hash is the already-completeHash-folded hash of the subtree
// beneath that character, exactly as it was mixed into the parent.
type ProofChild struct {
	Char byte
	Hash chainhash.Hash
}

// Proof is a full Merkle inclusion (or exclusion) proof for a name,
// returned by getProofForName (§6).
type Proof struct {
	Nodes   []ProofNode
	Value   *chainhash.Hash // nil when name has no active claim
	Exists  bool
}
