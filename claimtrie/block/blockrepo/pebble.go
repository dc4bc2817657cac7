// Package blockrepo implements block.Repo on top of a pebble key-value
// store, keyed by big-endian block height.
package blockrepo

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Pebble implements block.Repo.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (creating if necessary) a pebble database at path.
func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening block repo")
	}
	return &Pebble{db: db}, nil
}

func heightKey(height int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(height))
	return b[:]
}

// Get implements block.Repo.
func (r *Pebble) Get(height int32) (*chainhash.Hash, error) {
	v, closer, err := r.db.Get(heightKey(height))
	if err == pebble.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "block repo get")
	}
	defer closer.Close()

	var h chainhash.Hash
	copy(h[:], v)
	return &h, nil
}

// Set implements block.Repo.
func (r *Pebble) Set(height int32, hash *chainhash.Hash) error {
	if err := r.db.Set(heightKey(height), hash[:], pebble.Sync); err != nil {
		return errors.Wrap(err, "block repo set")
	}
	return r.db.Set([]byte("tip"), heightKey(height), pebble.Sync)
}

// Load implements block.Repo.
func (r *Pebble) Load() (int32, error) {
	v, closer, err := r.db.Get([]byte("tip"))
	if err == pebble.ErrNotFound {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrap(err, "block repo load")
	}
	defer closer.Close()
	return int32(binary.BigEndian.Uint32(v)), nil
}

// Flush implements block.Repo.
func (r *Pebble) Flush() error {
	return r.db.Flush()
}

// Close implements block.Repo.
func (r *Pebble) Close() error {
	return r.db.Close()
}
