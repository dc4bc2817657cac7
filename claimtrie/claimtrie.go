// Package claimtrie wires together the node index, the delay/expiration
// schedule, the block-height history and the Merkle trie into the single
// entry point the wider chain (block connect/disconnect, RPC) drives.
package claimtrie

import (
	"bytes"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lbryio/lbcd/claimtrie/block"
	"github.com/lbryio/lbcd/claimtrie/block/blockrepo"
	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/config"
	"github.com/lbryio/lbcd/claimtrie/merkletrie"
	"github.com/lbryio/lbcd/claimtrie/merkletrie/merkletrierepo"
	"github.com/lbryio/lbcd/claimtrie/node"
	"github.com/lbryio/lbcd/claimtrie/node/noderepo"
	"github.com/lbryio/lbcd/claimtrie/param"
	"github.com/lbryio/lbcd/claimtrie/temporal"
	"github.com/lbryio/lbcd/claimtrie/temporal/temporalrepo"
	"github.com/lbryio/lbcd/claimtrie/undo"
	"github.com/lbryio/lbcd/claimtrie/undo/undorepo"
)

// ClaimTrie is the top-level handle combining the node index, the block
// history, the delay schedule and the Merkle trie behind a single
// height-at-a-time interface (§6).
type ClaimTrie struct {
	blockRepo    block.Repo
	temporalRepo temporal.Repo
	undoRepo     undo.Repo
	nodeManager  node.Manager
	merkleTrie   merkletrie.MerkleTrie

	height int32

	cleanups []func() error
}

// New opens (or creates) every repo named in cfg and restores the trie to
// its last known height.
func New(cfg config.Config) (*ClaimTrie, error) {
	var cleanups []func() error

	blockRepo, err := blockrepo.NewPebble(filepath.Join(cfg.DataDir, cfg.BlockRepoPebble.Path))
	if err != nil {
		return nil, errors.Wrap(err, "creating block repo")
	}
	cleanups = append(cleanups, blockRepo.Close)

	temporalRepo, err := temporalrepo.NewPebble(filepath.Join(cfg.DataDir, cfg.TemporalRepoPebble.Path))
	if err != nil {
		return nil, errors.Wrap(err, "creating temporal repo")
	}
	cleanups = append(cleanups, temporalRepo.Close)

	undoRepo, err := undorepo.NewPebble(filepath.Join(cfg.DataDir, cfg.UndoRepoPebble.Path))
	if err != nil {
		return nil, errors.Wrap(err, "creating undo repo")
	}
	cleanups = append(cleanups, undoRepo.Close)

	nodeRepo, err := noderepo.NewPebble(filepath.Join(cfg.DataDir, cfg.NodeRepoPebble.Path))
	if err != nil {
		return nil, errors.Wrap(err, "creating node repo")
	}

	baseManager, err := node.NewBaseManager(nodeRepo)
	if err != nil {
		return nil, errors.Wrap(err, "creating node base manager")
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, errors.Wrap(err, "resolving fork parameters")
	}
	baseManager.SetParams(params)

	nodeManager := node.NewNormalizingManager(baseManager)
	cleanups = append(cleanups, nodeManager.Close)

	var trie merkletrie.MerkleTrie
	if cfg.RamTrie {
		trie = merkletrie.NewRamTrie(baseManager)
	} else {
		trieRepo, err := merkletrierepo.NewPebble(filepath.Join(cfg.DataDir, cfg.MerkleTrieRepoPebble.Path))
		if err != nil {
			return nil, errors.Wrap(err, "creating trie repo")
		}
		persistentTrie := merkletrie.NewPersistentTrie(baseManager, trieRepo)
		cleanups = append(cleanups, persistentTrie.Close)
		trie = persistentTrie
	}

	previousHeight, err := blockRepo.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load block tip")
	}

	ct := &ClaimTrie{
		blockRepo:    blockRepo,
		temporalRepo: temporalRepo,
		undoRepo:     undoRepo,
		nodeManager:  nodeManager,
		merkleTrie:   trie,
		height:       previousHeight,
		cleanups:     cleanups,
	}
	baseManager.SetHeight(previousHeight)

	if previousHeight > 0 {
		hash, err := blockRepo.Get(previousHeight)
		if err != nil {
			ct.Close()
			return nil, errors.Wrap(err, "block repo get")
		}
		if err := trie.SetRoot(*hash, nil); err != nil {
			ct.Close()
			return nil, errors.Wrap(err, "restoring trie root")
		}
		if got := ct.MerkleHash(); got != *hash {
			ct.Close()
			return nil, errors.Errorf("unable to restore the claim hash to %s at height %d", hash, previousHeight)
		}
	}

	return ct, nil
}

// AddClaim adds a claim to the trie, effective at the block about to be
// appended.
func (ct *ClaimTrie) AddClaim(name []byte, op wire.OutPoint, id change.ClaimID, amt int64) error {
	return ct.forwardNodeChange(change.Change{
		Type:     change.AddClaim,
		Name:     name,
		OutPoint: op,
		Amount:   amt,
		ClaimID:  id,
	})
}

// UpdateClaim updates an existing claim's amount/outpoint.
func (ct *ClaimTrie) UpdateClaim(name []byte, op wire.OutPoint, amt int64, id change.ClaimID) error {
	return ct.forwardNodeChange(change.Change{
		Type:     change.UpdateClaim,
		Name:     name,
		OutPoint: op,
		Amount:   amt,
		ClaimID:  id,
	})
}

// SpendClaim removes a claim.
func (ct *ClaimTrie) SpendClaim(name []byte, op wire.OutPoint, id change.ClaimID) error {
	return ct.forwardNodeChange(change.Change{
		Type:     change.SpendClaim,
		Name:     name,
		OutPoint: op,
		ClaimID:  id,
	})
}

// AddSupport adds a support.
func (ct *ClaimTrie) AddSupport(name []byte, op wire.OutPoint, amt int64, id change.ClaimID) error {
	return ct.forwardNodeChange(change.Change{
		Type:     change.AddSupport,
		Name:     name,
		OutPoint: op,
		Amount:   amt,
		ClaimID:  id,
	})
}

// SpendSupport removes a support.
func (ct *ClaimTrie) SpendSupport(name []byte, op wire.OutPoint, id change.ClaimID) error {
	return ct.forwardNodeChange(change.Change{
		Type:     change.SpendSupport,
		Name:     name,
		OutPoint: op,
		ClaimID:  id,
	})
}

func (ct *ClaimTrie) forwardNodeChange(chg change.Change) error {
	chg.Height = ct.height + 1
	if err := ct.nodeManager.AppendChange(chg); err != nil {
		return errors.Wrap(err, "node manager append change")
	}
	return nil
}

// AppendBlock advances the trie by one block: applies every change queued
// for the new height, runs the takeover/expiration pass, and recomputes
// the Merkle root.
func (ct *ClaimTrie) AppendBlock() error {
	touched, err := ct.incrementBlock()
	if err != nil {
		return err
	}

	if ct.height == ct.forkParams().NormalizedNameForkHeight {
		migrated, err := ct.nodeManager.MigrateNamesAtFork()
		if err != nil {
			return errors.Wrap(err, "migrating names at normalization fork")
		}
		if err := ct.rescheduleNames(migrated); err != nil {
			return err
		}
		for _, name := range migrated {
			ct.merkleTrie.Update(name, true)
		}
	}

	if ct.height == ct.forkParams().ExtendedClaimExpirationForkHeight {
		rewritten, err := ct.nodeManager.RewritePendingExpirations(ct.forkParams().ExpirationExtension(), ct.height)
		if err != nil {
			return errors.Wrap(err, "rewriting pending expirations at extended-expiration fork")
		}
		if err := ct.rescheduleNames(rewritten); err != nil {
			return err
		}
	}

	h := ct.MerkleHash()
	if err := ct.blockRepo.Set(ct.height, &h); err != nil {
		return errors.Wrap(err, "block repo set")
	}

	if ct.height == ct.forkParams().AllClaimsInMerkleForkHeight {
		ct.merkleTrie.SetRoot(h, touched)
	}

	return nil
}

func (ct *ClaimTrie) forkParams() param.ForkParams {
	return ct.nodeManager.Params()
}

// incrementBlock applies height's pending changes and the takeover pass,
// persists the resulting undo record, and returns every name touched.
func (ct *ClaimTrie) incrementBlock() ([][]byte, error) {
	ct.height++

	expired, err := ct.temporalRepo.NodesAt(ct.height)
	if err != nil {
		return nil, errors.Wrap(err, "temporal repo get")
	}

	names, nodeUndo, err := ct.nodeManager.IncrementHeightTo(ct.height, expired)
	if err != nil {
		ct.height--
		return nil, errors.Wrap(err, "node manager increment")
	}

	names = removeDuplicates(names)

	for _, name := range names {
		ct.merkleTrie.Update(name, true)
	}
	if err := ct.rescheduleNames(names); err != nil {
		return nil, err
	}

	if err := ct.undoRepo.Set(ct.height, nodeUndo); err != nil {
		return nil, errors.Wrap(err, "undo repo set")
	}

	return names, nil
}

// rescheduleNames re-registers the temporal schedule entry of every name in
// names at its current NextUpdateHeightOfName, dropping any that have
// nothing pending. Used both after a normal block's changes and after a
// fork's bulk rewrite touches names outside the regular change log.
func (ct *ClaimTrie) rescheduleNames(names [][]byte) error {
	updateNames := make([][]byte, 0, len(names))
	updateHeights := make([]int32, 0, len(names))
	for _, name := range names {
		if nextUpdate, ok := ct.nodeManager.NextUpdateHeightOfName(name); ok {
			updateNames = append(updateNames, name)
			updateHeights = append(updateHeights, nextUpdate)
		}
	}
	if err := ct.temporalRepo.SetNodesAt(updateNames, updateHeights); err != nil {
		return errors.Wrap(err, "temporal repo set")
	}
	return nil
}

func removeDuplicates(names [][]byte) [][]byte {
	sort.Slice(names, func(i, j int) bool {
		return bytes.Compare(names[i], names[j]) < 0
	})
	for i := len(names) - 2; i >= 0; i-- {
		if bytes.Equal(names[i], names[i+1]) {
			names = append(names[:i], names[i+1:]...)
		}
	}
	return names
}

// ResetHeight rolls the trie back to height, replaying undo records in
// reverse and re-verifying the recovered root against the block repo's
// independently stored hash for that height (§4.8).
func (ct *ClaimTrie) ResetHeight(height int32) error {
	if height >= ct.height {
		return errors.Errorf("reset height %d is not below current height %d", height, ct.height)
	}

	var names [][]byte
	for h := height + 1; h <= ct.height; h++ {
		results, err := ct.temporalRepo.NodesAt(h)
		if err != nil {
			return err
		}
		names = append(names, results...)
	}

	passedHashFork := ct.height >= ct.forkParams().AllClaimsInMerkleForkHeight && height < ct.forkParams().AllClaimsInMerkleForkHeight

	for h := ct.height; h > height; h-- {
		if h == ct.forkParams().ExtendedClaimExpirationForkHeight {
			if _, err := ct.nodeManager.RewritePendingExpirations(-ct.forkParams().ExpirationExtension(), h); err != nil {
				return errors.Wrapf(err, "reversing pending-expiration rewrite at height %d", h)
			}
		}

		recordedUndo, err := ct.undoRepo.Get(h)
		if err != nil {
			return errors.Wrapf(err, "undo repo get at height %d", h)
		}
		if err := ct.nodeManager.DecrementHeightTo(nil, h-1, recordedUndo); err != nil {
			return errors.Wrapf(err, "node manager decrement at height %d", h)
		}
	}
	ct.height = height

	hash, err := ct.blockRepo.Get(height)
	if err != nil {
		return err
	}
	if hash == nil {
		return errors.Errorf("no stored hash for height %d", height)
	}

	if passedHashFork {
		names = nil
	}
	if err := ct.merkleTrie.SetRoot(*hash, names); err != nil {
		return err
	}

	if got := ct.MerkleHash(); got != *hash {
		return errors.Errorf("unable to restore the hash at height %d", height)
	}
	return nil
}

// MerkleHash returns the root hash of the trie at the current height,
// switching to the all-claims-in-merkle rule once that fork is active.
func (ct *ClaimTrie) MerkleHash() chainhash.Hash {
	if ct.height >= ct.forkParams().AllClaimsInMerkleForkHeight {
		return ct.merkleTrie.MerkleHashAllClaims()
	}
	return ct.merkleTrie.MerkleHash()
}

// Height returns the current block height.
func (ct *ClaimTrie) Height() int32 {
	return ct.height
}

// Node returns the current row for name.
func (ct *ClaimTrie) Node(name []byte) (*node.Node, error) {
	return ct.nodeManager.Node(name)
}

// GetProof returns a Merkle inclusion/exclusion proof for name (§6's
// getProofForName).
func (ct *ClaimTrie) GetProof(name []byte) merkletrie.Proof {
	return ct.merkleTrie.GetProof(name)
}

// GetInfoForName returns the controlling claim for name at the current
// height, or false if the name has none (§6's getInfoForName).
func (ct *ClaimTrie) GetInfoForName(name []byte) (*node.Claim, bool, error) {
	n, err := ct.nodeManager.Node(name)
	if err != nil {
		return nil, false, err
	}
	if n == nil {
		return nil, false, nil
	}
	best := n.BestClaimAt(ct.height + 1)
	return best, best != nil, nil
}

// GetClaimsForName returns every claim (active or not) currently on name
// (§6's getClaimsForName).
func (ct *ClaimTrie) GetClaimsForName(name []byte) ([]*node.Claim, error) {
	n, err := ct.nodeManager.Node(name)
	if err != nil || n == nil {
		return nil, err
	}
	return n.Claims, nil
}

// GetLastTakeoverForName returns the controlling claim id and the height it
// took over at (§6's getLastTakeoverForName).
func (ct *ClaimTrie) GetLastTakeoverForName(name []byte) (change.ClaimID, int32, bool) {
	n, err := ct.nodeManager.Node(name)
	if err != nil || n == nil || !n.HasTakeover {
		return change.ClaimID{}, 0, false
	}
	return n.TakeoverClaimID, n.TakeoverHeight, true
}

// GetNamesInTrie visits every name currently holding at least one claim or
// support, in ascending order (§6's getNamesInTrie).
func (ct *ClaimTrie) GetNamesInTrie(visit func(name []byte) bool) error {
	return ct.nodeManager.IterateNames(func(name []byte) bool {
		n, err := ct.nodeManager.Node(name)
		if err != nil || n == nil || (len(n.Claims) == 0 && len(n.Supports) == 0) {
			return true
		}
		return visit(name)
	})
}

// Totals is the aggregate §6 "totals" query: the number of distinct names,
// the number of claims across all of them, and their combined amount.
type Totals struct {
	Names  int64
	Claims int64
	Value  int64
}

// GetTotals computes Totals by a full scan; an operational/debug query, not
// part of the block-processing hot path.
func (ct *ClaimTrie) GetTotals() (Totals, error) {
	var t Totals
	err := ct.nodeManager.IterateNames(func(name []byte) bool {
		n, err := ct.nodeManager.Node(name)
		if err != nil || n == nil {
			return true
		}
		t.Names++
		for _, c := range n.Claims {
			t.Claims++
			t.Value += c.Amount
		}
		return true
	})
	return t, err
}

// FindNameForClaim implements §6's findNameForClaim.
func (ct *ClaimTrie) FindNameForClaim(id change.ClaimID) ([]byte, *node.Claim, error) {
	return ct.nodeManager.FindNodeForClaimID(id)
}

// CheckConsistency independently recomputes every active node's
// contribution to the Merkle root and reports whether it matches the
// currently committed root (§6/§7's "Inconsistent" condition). The
// rebuilt trie replaces the in-memory Merkle trie.
func (ct *ClaimTrie) CheckConsistency() error {
	var names [][]byte
	err := ct.nodeManager.IterateNames(func(name []byte) bool {
		names = append(names, append([]byte(nil), name...))
		return true
	})
	if err != nil {
		return errors.Wrap(err, "iterating names")
	}

	// SetRoot rebuilds the trie from names and rejects the result if the
	// recomputed hash disagrees with the currently committed root.
	return ct.merkleTrie.SetRoot(ct.MerkleHash(), names)
}

// ValidateDb reports whether the currently committed root equals
// expectedRoot, the check a caller runs against an externally-known-good
// value (e.g. a block header) rather than against the trie's own idea of
// its root (§6/§7).
func (ct *ClaimTrie) ValidateDb(expectedRoot chainhash.Hash) error {
	if got := ct.MerkleHash(); got != expectedRoot {
		return errors.Errorf("root %s does not match expected %s", got, expectedRoot)
	}
	return nil
}

// FlushToDisk persists every component's in-memory state, logging (not
// returning) any individual failure so the others still get a chance to
// flush.
func (ct *ClaimTrie) FlushToDisk() {
	if err := ct.nodeManager.Flush(); err != nil {
		node.Warn("During nodeManager flush: " + err.Error())
	}
	if err := ct.temporalRepo.Flush(); err != nil {
		node.Warn("During temporalRepo flush: " + err.Error())
	}
	if err := ct.undoRepo.Flush(); err != nil {
		node.Warn("During undoRepo flush: " + err.Error())
	}
	if err := ct.merkleTrie.Flush(); err != nil {
		node.Warn("During merkleTrie flush: " + err.Error())
	}
	if err := ct.blockRepo.Flush(); err != nil {
		node.Warn("During blockRepo flush: " + err.Error())
	}
}

// Flush persists state to disk, retrying with backoff since pebble on some
// platforms returns a transient "resource busy" error under concurrent
// compaction (§4.8).
func (ct *ClaimTrie) Flush() error {
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		if lastErr = ct.nodeManager.Flush(); lastErr == nil {
			if lastErr = ct.temporalRepo.Flush(); lastErr == nil {
				if lastErr = ct.undoRepo.Flush(); lastErr == nil {
					if lastErr = ct.merkleTrie.Flush(); lastErr == nil {
						return ct.blockRepo.Flush()
					}
				}
			}
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return errors.Wrap(lastErr, "flush failed after retries")
}

// Close releases every repo's resources, in reverse acquisition order, and
// logs (rather than returns) any cleanup error so the rest still run.
func (ct *ClaimTrie) Close() {
	for i := len(ct.cleanups) - 1; i >= 0; i-- {
		if err := ct.cleanups[i](); err != nil {
			node.LogOnce("On cleanup: " + err.Error())
		}
	}
}
