package merkletrie

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// GetProof implements getProofForName (§6): it walks the trie along name,
// recording at each visited node the hashes of every sibling edge so a
// verifier can recompute ancestor hashes up to the root without access to
// the rest of the trie.
func (t *radixTrie) GetProof(name []byte) Proof {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	var proof Proof
	n := t.root
	prefix := make([]byte, 0, len(name))
	for i := 0; i <= len(name); i++ {
		t.resolve(n)

		pn := ProofNode{HasValue: n.hasValue, NextChar: -1}
		if n.hasValue {
			pn.Values = t.valuesAt(prefix)
		}
		for ch := 0; ch < 256; ch++ {
			child := n.links[ch]
			if child == nil {
				continue
			}
			t.mergeChildHash(&pn, byte(ch), child)
		}

		if i == len(name) {
			proof.Nodes = append(proof.Nodes, pn)
			break
		}

		ch := name[i]
		child := n.links[ch]
		if child == nil {
			pn.NextChar = -1
			proof.Nodes = append(proof.Nodes, pn)
			proof.Exists = false
			return proof
		}
		for j := range pn.Children {
			if pn.Children[j].Char == ch {
				pn.NextChar = j
				break
			}
		}
		proof.Nodes = append(proof.Nodes, pn)
		n = child
		prefix = append(prefix, ch)
	}

	if h, ok := t.store.Hash(name); ok {
		proof.Exists = true
		proof.Value = &h
	}
	return proof
}

// valuesAt returns the value hash(es) name should contribute to the Merkle
// root, mirroring exactly how merkle() folds a node's own value in: the
// single best claim's hash normally, or every active claim's hash once the
// all-claims-in-merkle fork is active.
func (t *radixTrie) valuesAt(name []byte) []chainhash.Hash {
	if t.allFork {
		return t.store.Hashes(name)
	}
	if h, ok := t.store.Hash(name); ok {
		return []chainhash.Hash{h}
	}
	return nil
}

func (t *radixTrie) mergeChildHash(pn *ProofNode, ch byte, child *rnode) {
	h := t.merkle(nil, child)
	if h == nil {
		return
	}
	pn.Children = append(pn.Children, ProofChild{Char: ch, Hash: *h})
}

// VerifyProof recomputes the root hash implied by proof and reports
// whether it equals root, without needing access to the rest of the trie
// (§4.7's proof-soundness property).
func VerifyProof(proof Proof, root chainhash.Hash) bool {
	if len(proof.Nodes) == 0 {
		return root == EmptyTrieHash
	}

	var childHash *chainhash.Hash
	for i := len(proof.Nodes) - 1; i >= 0; i-- {
		pn := proof.Nodes[i]

		buf := make([]byte, 0, 64)
		for j, c := range pn.Children {
			h := c.Hash
			if j == pn.NextChar && childHash != nil {
				h = *childHash
			}
			buf = append(buf, c.Char)
			buf = append(buf, h[:]...)
		}
		if pn.HasValue {
			for _, v := range pn.Values {
				buf = append(buf, v[:]...)
			}
		}

		if len(buf) == 0 {
			childHash = nil
			continue
		}
		h := chainhash.DoubleHashH(buf)
		childHash = &h
	}

	if childHash == nil {
		return root == EmptyTrieHash
	}
	return *childHash == root
}
