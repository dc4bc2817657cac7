package undorepo

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/node"
)

// Pebble implements undo.Repo.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (creating if necessary) a pebble database at path.
func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening undo repo")
	}
	return &Pebble{db: db}, nil
}

func heightKey(height int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(height))
	return b[:]
}

// Get implements undo.Repo.
func (r *Pebble) Get(height int32) (node.UndoBuckets, error) {
	v, closer, err := r.db.Get(heightKey(height))
	if err == pebble.ErrNotFound {
		return node.UndoBuckets{Height: height}, nil
	} else if err != nil {
		return node.UndoBuckets{}, errors.Wrap(err, "undo repo get")
	}
	defer closer.Close()

	u, err := decode(v)
	if err != nil {
		return node.UndoBuckets{}, errors.Wrapf(err, "decoding undo record at height %d", height)
	}
	return u, nil
}

// Set implements undo.Repo.
func (r *Pebble) Set(height int32, undo node.UndoBuckets) error {
	return r.db.Set(heightKey(height), encode(undo), pebble.Sync)
}

// Flush implements undo.Repo.
func (r *Pebble) Flush() error {
	return r.db.Flush()
}

// Close implements undo.Repo.
func (r *Pebble) Close() error {
	return r.db.Close()
}
