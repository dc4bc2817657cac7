package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbryio/lbcd/claimtrie/param"
)

func TestDefaultParamsResolveToMainnet(t *testing.T) {
	cfg := Default()
	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, param.Mainnet(), p)
}

func TestRegtestNetworkResolves(t *testing.T) {
	cfg := Default()
	cfg.Network = "regtest"
	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, param.Regtest(), p)
}

func TestUnknownNetworkErrors(t *testing.T) {
	cfg := Default()
	cfg.Network = "testnet3"
	_, err := cfg.Params()
	assert.Error(t, err)
}

func TestLoadWithNoPathOrFlagsReturnsDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadHonorsBoundFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Set("network", "regtest"))
	require.NoError(t, fs.Set("ramtrie", "false"))
	require.NoError(t, fs.Set("datadir", "/tmp/claimtrie-test"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "regtest", cfg.Network)
	assert.False(t, cfg.RamTrie)
	assert.Equal(t, "/tmp/claimtrie-test", cfg.DataDir)
}
