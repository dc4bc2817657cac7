package node

import (
	"bytes"
	"sort"
)

// MemoryRepo is an in-memory Repo, used by unit tests that want to drive
// Manager without standing up a pebble database.
type MemoryRepo struct {
	rows map[string]*Node
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]*Node)}
}

func (r *MemoryRepo) Get(name []byte) (*Node, error) {
	n, ok := r.rows[string(name)]
	if !ok {
		return nil, nil
	}
	return n.Clone(), nil
}

func (r *MemoryRepo) Set(name []byte, n *Node) error {
	r.rows[string(name)] = n.Clone()
	return nil
}

func (r *MemoryRepo) Delete(name []byte) error {
	delete(r.rows, string(name))
	return nil
}

func (r *MemoryRepo) IterateNames(fn func(name []byte) bool) error {
	names := make([][]byte, 0, len(r.rows))
	for k := range r.rows {
		names = append(names, []byte(k))
	}
	sort.Slice(names, func(i, j int) bool { return bytes.Compare(names[i], names[j]) < 0 })
	for _, n := range names {
		if !fn(n) {
			break
		}
	}
	return nil
}

func (r *MemoryRepo) NodesInPrefix(prefix []byte) ([][]byte, error) {
	var names [][]byte
	for k := range r.rows {
		if bytes.HasPrefix([]byte(k), prefix) {
			names = append(names, []byte(k))
		}
	}
	sort.Slice(names, func(i, j int) bool { return bytes.Compare(names[i], names[j]) < 0 })
	return names, nil
}

func (r *MemoryRepo) Flush() error { return nil }
func (r *MemoryRepo) Close() error { return nil }
