// Package block stores the calculated Merkle root for every block height,
// the thin slice of C2 StateStore that backs §6's "root hash bytes" and
// ResetHeight's ability to verify a restored root.
package block

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Repo persists height -> MerkleHash.
type Repo interface {
	Get(height int32) (*chainhash.Hash, error)
	Set(height int32, hash *chainhash.Hash) error

	// Load returns the highest height with a stored hash, 0 if none.
	Load() (int32, error)

	Flush() error
	Close() error
}
