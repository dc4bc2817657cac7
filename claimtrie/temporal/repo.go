// Package temporal implements the DelayQueues component (C5): an index
// from block height to the node names that must be reconsidered at that
// height, whether because a claim/support becomes valid, expires, or a
// previous takeover scheduled a future re-check.
package temporal

// Repo is the height -> names schedule.
type Repo interface {
	// NodesAt returns every name scheduled for height.
	NodesAt(height int32) ([][]byte, error)

	// SetNodesAt records that every name in names should be
	// reconsidered at the corresponding entry in heights.
	SetNodesAt(names [][]byte, heights []int32) error

	Flush() error
	Close() error
}
