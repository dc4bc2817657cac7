// Package temporalrepo implements temporal.Repo on pebble, keyed so that
// every (height, name) schedule entry sorts together under its height
// prefix for cheap range scans.
package temporalrepo

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Pebble implements temporal.Repo.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (creating if necessary) a pebble database at path.
func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening temporal repo")
	}
	return &Pebble{db: db}, nil
}

// nextPrefix returns the smallest key greater than every key sharing
// prefix, for use as a pebble range upper bound.
func nextPrefix(prefix []byte) []byte {
	next := append([]byte(nil), prefix...)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] < 0xff {
			next[i]++
			return next[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded
}

func scheduleKey(height int32, name []byte) []byte {
	key := make([]byte, 4+len(name))
	binary.BigEndian.PutUint32(key[:4], uint32(height))
	copy(key[4:], name)
	return key
}

// NodesAt implements temporal.Repo.
func (r *Pebble) NodesAt(height int32) ([][]byte, error) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(height))

	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix[:],
		UpperBound: nextPrefix(prefix[:]),
	})
	if err != nil {
		return nil, errors.Wrap(err, "temporal repo iterator")
	}
	defer iter.Close()

	var names [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		name := append([]byte(nil), key[4:]...)
		names = append(names, name)
	}
	return names, iter.Error()
}

// SetNodesAt implements temporal.Repo.
func (r *Pebble) SetNodesAt(names [][]byte, heights []int32) error {
	if len(names) != len(heights) {
		return errors.Errorf("temporal repo: %d names but %d heights", len(names), len(heights))
	}

	batch := r.db.NewBatch()
	defer batch.Close()

	for i, name := range names {
		if err := batch.Set(scheduleKey(heights[i], name), []byte{}, nil); err != nil {
			return errors.Wrap(err, "temporal repo batch set")
		}
	}
	return batch.Commit(pebble.Sync)
}

// Flush implements temporal.Repo.
func (r *Pebble) Flush() error {
	return r.db.Flush()
}

// Close implements temporal.Repo.
func (r *Pebble) Close() error {
	return r.db.Close()
}
