// Package config loads the on-disk layout and tunables for a ClaimTrie
// instance, following the spf13/viper + spf13/pflag convention seen across
// the wider node-repo pack (e.g. AKJUS-bsc-erigon's cobra/pflag-driven
// config surface) for a repo the teacher itself never had cause to
// configure from a file.
package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lbryio/lbcd/claimtrie/param"
)

// PebbleConfig is the subset of pebble.Options an operator is expected to
// tune per repo.
type PebbleConfig struct {
	Path string
}

// Config is every knob ClaimTrie.New reads at startup.
type Config struct {
	DataDir string

	// RamTrie selects the in-memory MerkleTrie implementation over the
	// disk-backed PersistentTrie.
	RamTrie bool

	BlockRepoPebble      PebbleConfig
	TemporalRepoPebble   PebbleConfig
	NodeRepoPebble       PebbleConfig
	MerkleTrieRepoPebble PebbleConfig
	UndoRepoPebble       PebbleConfig

	// Network selects which param.ForkParams to run with.
	Network string
}

// Params resolves the configured network name to its fork parameters.
func (c Config) Params() (param.ForkParams, error) {
	switch c.Network {
	case "", "mainnet":
		return param.Mainnet(), nil
	case "regtest":
		return param.Regtest(), nil
	default:
		return param.ForkParams{}, errors.Errorf("unknown network %q", c.Network)
	}
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		DataDir:              filepath.Join(".", "data"),
		RamTrie:              true,
		BlockRepoPebble:      PebbleConfig{Path: "blocks"},
		TemporalRepoPebble:   PebbleConfig{Path: "temporal"},
		NodeRepoPebble:       PebbleConfig{Path: "nodes"},
		MerkleTrieRepoPebble: PebbleConfig{Path: "merkletrie"},
		UndoRepoPebble:       PebbleConfig{Path: "undo"},
		Network:              "mainnet",
	}
}

// BindFlags registers this package's flags on fs, for a cobra command's
// PersistentFlags to merge into its own flag set.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("datadir", Default().DataDir, "directory holding the claimtrie's pebble databases")
	fs.Bool("ramtrie", Default().RamTrie, "use the in-memory MerkleTrie implementation")
	fs.String("network", Default().Network, "network fork parameters to run with (mainnet, regtest)")
}

// Load reads path (if non-empty) via viper, falling back to Default for any
// key the file or fs doesn't set.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetDefault("datadir", cfg.DataDir)
	v.SetDefault("ramtrie", cfg.RamTrie)
	v.SetDefault("network", cfg.Network)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return cfg, errors.Wrap(err, "binding flags")
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "reading config %q", path)
		}
	}

	cfg.DataDir = v.GetString("datadir")
	cfg.RamTrie = v.GetBool("ramtrie")
	cfg.Network = v.GetString("network")

	return cfg, nil
}
