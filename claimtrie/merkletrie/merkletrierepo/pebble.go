// Package merkletrierepo implements the content-addressed cache
// PersistentTrie resolves trie nodes from, keyed by the node's own hash rather
// than its position in the trie.
package merkletrierepo

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Pebble implements merkletrie.CacheRepo.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (creating if necessary) a pebble database at path.
func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening merkletrie repo")
	}
	return &Pebble{db: db}, nil
}

// Get returns the cached node buffer for hash, or (nil, nil) if absent.
func (r *Pebble) Get(hash []byte) ([]byte, error) {
	v, closer, err := r.db.Get(hash)
	if err == pebble.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "merkletrie repo get")
	}
	defer closer.Close()

	return append([]byte(nil), v...), nil
}

// Set stores buf under hash. Entries are content-addressed so a Set for an
// already-present hash is a harmless overwrite with identical bytes.
func (r *Pebble) Set(hash []byte, buf []byte) error {
	return r.db.Set(hash, buf, pebble.NoSync)
}

// Close closes the underlying database.
func (r *Pebble) Close() error {
	return r.db.Close()
}
