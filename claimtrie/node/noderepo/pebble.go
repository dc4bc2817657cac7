// Package noderepo implements node.Repo on pebble: one row per nodeName,
// keyed so that pebble's native sorted iteration directly answers the
// "children of a prefix" queries the logical radix-trie view (C3) needs,
// without maintaining physical parent/child rows.
package noderepo

import (
	"bytes"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/node"
)

// Pebble implements node.Repo.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (creating if necessary) a pebble database at path.
func NewPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening node repo")
	}
	return &Pebble{db: db}, nil
}

// Get implements node.Repo.
func (r *Pebble) Get(name []byte) (*node.Node, error) {
	v, closer, err := r.db.Get(name)
	if err == pebble.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "node repo get")
	}
	defer closer.Close()

	n, err := decode(name, v)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding node %q", name)
	}
	return n, nil
}

// Set implements node.Repo.
func (r *Pebble) Set(name []byte, n *node.Node) error {
	return r.db.Set(name, encode(n), pebble.Sync)
}

// Delete implements node.Repo.
func (r *Pebble) Delete(name []byte) error {
	return r.db.Delete(name, pebble.Sync)
}

// IterateNames implements node.Repo.
func (r *Pebble) IterateNames(fn func(name []byte) bool) error {
	iter, err := r.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return errors.Wrap(err, "node repo iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(append([]byte(nil), iter.Key()...)) {
			break
		}
	}
	return iter.Error()
}

// NodesInPrefix implements node.Repo using a bounded range scan: every key
// starting with prefix, up to the smallest key that does not.
func (r *Pebble) NodesInPrefix(prefix []byte) ([][]byte, error) {
	upper := nextPrefix(prefix)
	opts := &pebble.IterOptions{LowerBound: prefix}
	if upper != nil {
		opts.UpperBound = upper
	}

	iter, err := r.db.NewIter(opts)
	if err != nil {
		return nil, errors.Wrap(err, "node repo prefix iterator")
	}
	defer iter.Close()

	var names [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			continue
		}
		names = append(names, append([]byte(nil), iter.Key()...))
	}
	return names, iter.Error()
}

func nextPrefix(prefix []byte) []byte {
	next := append([]byte(nil), prefix...)
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] < 0xff {
			next[i]++
			return next[:i+1]
		}
	}
	return nil
}

// Flush implements node.Repo.
func (r *Pebble) Flush() error {
	return r.db.Flush()
}

// Close implements node.Repo.
func (r *Pebble) Close() error {
	return r.db.Close()
}
