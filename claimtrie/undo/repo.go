// Package undo persists one node.UndoBuckets per block height, the
// durable half of §4.8's block increment/decrement contract: incrementBlock
// writes the record a block produced, ResetHeight reads it back out again
// to reverse that exact block, however long after the fact it runs.
package undo

import "github.com/lbryio/lbcd/claimtrie/node"

// Repo persists height -> node.UndoBuckets.
type Repo interface {
	Get(height int32) (node.UndoBuckets, error)
	Set(height int32, undo node.UndoBuckets) error

	Flush() error
	Close() error
}
