package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveExpirationTimeCrossesFork(t *testing.T) {
	p := Mainnet()
	assert.Equal(t, p.OriginalClaimExpirationTime, p.ActiveExpirationTime(p.ExtendedClaimExpirationForkHeight-1))
	assert.Equal(t, p.ExtendedClaimExpirationTime, p.ActiveExpirationTime(p.ExtendedClaimExpirationForkHeight))
}

func TestNormalizationActiveIsStrictlyAfterFork(t *testing.T) {
	p := Mainnet()
	assert.False(t, p.NormalizationActive(p.NormalizedNameForkHeight))
	assert.True(t, p.NormalizationActive(p.NormalizedNameForkHeight+1))
}

func TestAllClaimsInMerkleActiveAtFork(t *testing.T) {
	p := Mainnet()
	assert.True(t, p.AllClaimsInMerkleActive(p.AllClaimsInMerkleForkHeight))
	assert.False(t, p.AllClaimsInMerkleActive(p.AllClaimsInMerkleForkHeight-1))
}

func TestTakeoverWorkaroundMissByDefault(t *testing.T) {
	_, ok := TakeoverWorkaround(1, []byte("example"))
	assert.False(t, ok, "no historical workaround data is embedded in this checkout")
}

func TestRegtestForksAreReachable(t *testing.T) {
	p := Regtest()
	assert.Less(t, p.NormalizedNameForkHeight, int32(1000000))
	assert.True(t, p.AllowSupportMetadata(0))
}
