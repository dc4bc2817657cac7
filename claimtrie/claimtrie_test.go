package claimtrie

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbryio/lbcd/claimtrie/block/blockrepo"
	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/config"
	"github.com/lbryio/lbcd/claimtrie/merkletrie"
	"github.com/lbryio/lbcd/claimtrie/node"
	"github.com/lbryio/lbcd/claimtrie/node/noderepo"
	"github.com/lbryio/lbcd/claimtrie/param"
	"github.com/lbryio/lbcd/claimtrie/temporal/temporalrepo"
	"github.com/lbryio/lbcd/claimtrie/undo/undorepo"
)

func testOutPoint(b byte) wire.OutPoint {
	var h chainhash.Hash
	h[0] = b
	return wire.OutPoint{Hash: h, Index: 0}
}

func newTestClaimTrie(t *testing.T) *ClaimTrie {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Network = "regtest"
	cfg.RamTrie = true

	ct, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(ct.Close)
	return ct
}

// newTestClaimTrieWithParams wires the same repos and managers New does,
// always with a RamTrie and without registering cleanups, and takes the
// fork heights from p directly instead of resolving them from
// cfg.Network, so fork-crossing behavior can be exercised in a handful of
// blocks instead of the tens of thousands real network params require.
func newTestClaimTrieWithParams(t *testing.T, p param.ForkParams) *ClaimTrie {
	t.Helper()
	dir := t.TempDir()

	blockRepo, err := blockrepo.NewPebble(filepath.Join(dir, "blocks"))
	require.NoError(t, err)
	temporalRepo, err := temporalrepo.NewPebble(filepath.Join(dir, "temporal"))
	require.NoError(t, err)
	undoRepo, err := undorepo.NewPebble(filepath.Join(dir, "undo"))
	require.NoError(t, err)
	nodeRepo, err := noderepo.NewPebble(filepath.Join(dir, "nodes"))
	require.NoError(t, err)

	baseManager, err := node.NewBaseManager(nodeRepo)
	require.NoError(t, err)
	baseManager.SetParams(p)
	nodeManager := node.NewNormalizingManager(baseManager)

	trie := merkletrie.NewRamTrie(baseManager)

	ct := &ClaimTrie{
		blockRepo:    blockRepo,
		temporalRepo: temporalRepo,
		undoRepo:     undoRepo,
		nodeManager:  nodeManager,
		merkleTrie:   trie,
	}
	t.Cleanup(ct.Close)
	return ct
}

func TestAppendBlockRewritesPendingExpirationsAtFork(t *testing.T) {
	p := param.Regtest()
	p.OriginalClaimExpirationTime = 5
	p.ExtendedClaimExpirationTime = 9
	p.ExtendedClaimExpirationForkHeight = 3
	p.NormalizedNameForkHeight = 100000
	p.AllClaimsInMerkleForkHeight = 100000
	p.MaxRemovalWorkaroundHeight = 100000
	ct := newTestClaimTrieWithParams(t, p)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock()) // height 1: expiration = 1 + 5 = 6

	claim, ok, err := ct.GetInfoForName([]byte("lbry"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(6), claim.ExpirationHeight)

	require.NoError(t, ct.AppendBlock()) // height 2: no change
	require.NoError(t, ct.AppendBlock()) // height 3: crosses the fork, +4

	claim, ok, err = ct.GetInfoForName([]byte("lbry"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(10), claim.ExpirationHeight, "a pre-fork claim's expiration must be extended by the fork's delta")

	require.NoError(t, ct.ResetHeight(2))
	claim, ok, err = ct.GetInfoForName([]byte("lbry"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(6), claim.ExpirationHeight, "resetting back below the fork must reverse the extension")
}

func TestAppendBlockDoesNotDoubleExtendAClaimCreatedOnTheForkBlock(t *testing.T) {
	p := param.Regtest()
	p.OriginalClaimExpirationTime = 5
	p.ExtendedClaimExpirationTime = 9
	p.ExtendedClaimExpirationForkHeight = 2
	p.NormalizedNameForkHeight = 100000
	p.AllClaimsInMerkleForkHeight = 100000
	p.MaxRemovalWorkaroundHeight = 100000
	ct := newTestClaimTrieWithParams(t, p)

	require.NoError(t, ct.AppendBlock()) // height 1

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock()) // height 2: crosses the fork; claim created this same block

	claim, ok, err := ct.GetInfoForName([]byte("lbry"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(11), claim.ExpirationHeight, "claim already sized with the extended window must not also get the bulk +delta")
}

func TestAppendBlockMigratesNamesAtNormalizationFork(t *testing.T) {
	p := param.Regtest()
	p.NormalizedNameForkHeight = 3
	p.ExtendedClaimExpirationForkHeight = 100000
	p.AllClaimsInMerkleForkHeight = 100000
	p.MaxRemovalWorkaroundHeight = 100000
	ct := newTestClaimTrieWithParams(t, p)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("ABC"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock()) // height 1: normalization not yet active
	require.NoError(t, ct.AppendBlock()) // height 2
	require.NoError(t, ct.AppendBlock()) // height 3: crosses the fork

	claim, ok, err := ct.GetInfoForName([]byte("abc"))
	require.NoError(t, err)
	require.True(t, ok, "the pre-fork claim must have been migrated to its normalized name")
	assert.Equal(t, id, claim.ClaimID)

	totals, err := ct.GetTotals()
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Names, "migration must not leave the old raw-name row behind")
}

func TestAppendBlockActivatesFirstClaimAndMovesRoot(t *testing.T) {
	ct := newTestClaimTrie(t)

	before := ct.MerkleHash()

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())

	assert.Equal(t, int32(1), ct.Height())
	after := ct.MerkleHash()
	assert.NotEqual(t, before, after)

	claim, ok, err := ct.GetInfoForName([]byte("lbry"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, claim.ClaimID)
}

func TestResetHeightRestoresPriorRoot(t *testing.T) {
	ct := newTestClaimTrie(t)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())
	rootAfterBlock1 := ct.MerkleHash()

	id2 := change.NewClaimID(testOutPoint(2))
	require.NoError(t, ct.AddClaim([]byte("other"), testOutPoint(2), id2, 5))
	require.NoError(t, ct.AppendBlock())
	assert.Equal(t, int32(2), ct.Height())

	require.NoError(t, ct.ResetHeight(1))
	assert.Equal(t, int32(1), ct.Height())
	assert.Equal(t, rootAfterBlock1, ct.MerkleHash())

	_, ok, err := ct.GetInfoForName([]byte("other"))
	require.NoError(t, err)
	assert.False(t, ok, "a claim added after the reset point must be gone")
}

func TestCheckConsistencyPassesAfterNormalOperation(t *testing.T) {
	ct := newTestClaimTrie(t)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())

	assert.NoError(t, ct.CheckConsistency())
}

func TestValidateDbDetectsMismatch(t *testing.T) {
	ct := newTestClaimTrie(t)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())

	assert.NoError(t, ct.ValidateDb(ct.MerkleHash()))
	assert.Error(t, ct.ValidateDb(chainhash.Hash{0xEE}))
}

func TestGetTotalsAndFindNameForClaim(t *testing.T) {
	ct := newTestClaimTrie(t)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())

	totals, err := ct.GetTotals()
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Names)
	assert.Equal(t, int64(1), totals.Claims)
	assert.Equal(t, int64(10), totals.Value)

	name, claim, err := ct.FindNameForClaim(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("lbry"), name)
	assert.Equal(t, id, claim.ClaimID)
}

func TestGetProofViaClaimTrie(t *testing.T) {
	ct := newTestClaimTrie(t)

	id := change.NewClaimID(testOutPoint(1))
	require.NoError(t, ct.AddClaim([]byte("lbry"), testOutPoint(1), id, 10))
	require.NoError(t, ct.AppendBlock())

	proof := ct.GetProof([]byte("lbry"))
	assert.True(t, proof.Exists)
	require.NotNil(t, proof.Value)
}
