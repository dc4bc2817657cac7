package node

// Repo is the StateStore contract (C2) for the nodes/claims/supports
// relations of §4.2. Implementations (see noderepo) are transactional
// key-value stores; any failure is a StoreError per §7 and aborts the
// in-flight block.
type Repo interface {
	// Get returns the node currently stored for name, or nil if none
	// exists yet.
	Get(name []byte) (*Node, error)

	// Set persists the full node row for name, overwriting any prior
	// value. Manager always read-modify-writes through Get/Set rather
	// than mutating fields independently, keeping Repo implementations
	// simple key-value stores.
	Set(name []byte, n *Node) error

	// Delete removes the row for name entirely; used by
	// NormalizingManager.MigrateNamesAtFork to drop a raw-named row after
	// merging it into its normalized name.
	Delete(name []byte) error

	// IterateNames calls fn for every name currently holding a row,
	// ascending by name (bytewise), stopping early if fn returns false.
	// Backs getNamesInTrie (§6) and findNameForClaim.
	IterateNames(fn func(name []byte) bool) error

	// NodesInPrefix returns every stored name that has name as a strict
	// or non-strict prefix of itself (allNodesOnPath when called with
	// the reversed relation) - used by the logical radix-trie view (C3)
	// to discover children of a branching point without physical parent
	// pointers.
	NodesInPrefix(prefix []byte) ([][]byte, error)

	Flush() error
	Close() error
}
