package undorepo

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/node"
)

func op(b byte) wire.OutPoint {
	var h chainhash.Hash
	h[0] = b
	return wire.OutPoint{Hash: h, Index: 7}
}

func TestEncodeDecodeRoundTripsAllBuckets(t *testing.T) {
	want := node.UndoBuckets{
		Height: 42,
		Inserts: []node.InsertUndo{
			{Name: []byte("foo"), OutPoint: op(1), PriorValidHeight: 10},
		},
		SupportInserts: []node.InsertUndo{
			{Name: []byte("bar"), OutPoint: op(2), PriorValidHeight: 20},
		},
		ClaimExpirations: []node.ClaimExpireUndo{
			{Name: []byte("foo"), Claim: node.Claim{
				ClaimID:          change.ClaimID{9},
				OutPoint:         op(3),
				Amount:           100,
				BlockHeight:      1,
				ValidHeight:      2,
				ExpirationHeight: 1000,
				Metadata:         []byte("meta"),
			}},
		},
		SupportExpirations: []node.SupportExpireUndo{
			{Name: []byte("bar"), Support: node.Support{
				SupportedClaimID: change.ClaimID{8},
				OutPoint:         op(4),
				Amount:           50,
				BlockHeight:      1,
				ValidHeight:      2,
				ExpirationHeight: 2000,
			}},
		},
		Takeovers: []node.TakeoverUndo{
			{Name: []byte("foo"), HadPriorClaimID: true, PriorHeight: 5, PriorClaimID: change.ClaimID{7}},
			{Name: []byte("baz"), HadPriorClaimID: false, PriorHeight: 0, PriorClaimID: change.ClaimID{}},
		},
		ClaimCreates: []node.ClaimCreateUndo{
			{Name: []byte("foo"), ClaimID: change.ClaimID{6}, OutPoint: op(5)},
		},
		SupportCreates: []node.SupportCreateUndo{
			{Name: []byte("bar"), OutPoint: op(6)},
		},
		ClaimUpdates: []node.ClaimUpdateUndo{
			{Name: []byte("foo"), Prior: node.Claim{
				ClaimID:          change.ClaimID{5},
				OutPoint:         op(7),
				Amount:           30,
				BlockHeight:      1,
				ValidHeight:      1,
				ExpirationHeight: 500,
				Metadata:         []byte("old"),
			}},
		},
	}

	raw := encode(want)
	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeDecodeEmptyBuckets(t *testing.T) {
	want := node.UndoBuckets{Height: 1}
	raw := encode(want)
	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.IsEmpty())
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	want := node.UndoBuckets{
		Height:  1,
		Inserts: []node.InsertUndo{{Name: []byte("foo"), OutPoint: op(1), PriorValidHeight: 1}},
	}
	raw := encode(want)
	_, err := decode(raw[:len(raw)-3])
	assert.Error(t, err)
}
