package node

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/lbryio/lbcd/claimtrie/merkletrie"
)

// Hash implements merkletrie.ValueStore: the value hash of the single best
// claim for name, looking one block ahead per §4.6's convention so a claim
// that just became valid this block is already counted.
func (m *BaseManager) Hash(name []byte) (chainhash.Hash, bool) {
	n, err := m.repo.Get(name)
	if err != nil || n == nil {
		return chainhash.Hash{}, false
	}
	best := n.BestClaimAt(m.height + 1)
	if best == nil {
		return chainhash.Hash{}, false
	}
	return merkletrie.ValueHash(best.OutPoint, n.TakeoverHeight), true
}

// Hashes implements merkletrie.ValueStore for the all-claims-in-merkle fork
// (§4.9): every active claim's value hash, in §3's strict weak order.
func (m *BaseManager) Hashes(name []byte) []chainhash.Hash {
	n, err := m.repo.Get(name)
	if err != nil || n == nil {
		return nil
	}
	active := n.ActiveClaimsAt(m.height + 1)
	if len(active) == 0 {
		return nil
	}
	hashes := make([]chainhash.Hash, len(active))
	for i, c := range active {
		hashes[i] = merkletrie.ValueHash(c.OutPoint, n.TakeoverHeight)
	}
	return hashes
}
