// Command claimtrie-cli is an operational tool for inspecting a ClaimTrie
// database offline: querying a name's controlling claim, dumping its
// Merkle proof, or reporting aggregate totals.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lbryio/lbcd/claimtrie"
	"github.com/lbryio/lbcd/claimtrie/config"
	"github.com/lbryio/lbcd/internal/version"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "claimtrie-cli",
		Short: "Inspect a claimtrie database",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file")
	fs := pflag.NewFlagSet("claimtrie", pflag.ExitOnError)
	config.BindFlags(fs)
	root.PersistentFlags().AddFlagSet(fs)

	root.AddCommand(versionCmd(), infoCmd(), proofCmd(), totalsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openTrie(cmd *cobra.Command) (*claimtrie.ClaimTrie, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return claimtrie.New(cfg)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.String())
			return nil
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "print the controlling claim for a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := openTrie(cmd)
			if err != nil {
				return err
			}
			defer ct.Close()

			claim, ok, err := ct.GetInfoForName([]byte(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no active claim")
				return nil
			}
			fmt.Printf("claimId=%s amount=%d blockHeight=%d validHeight=%d\n",
				claim.ClaimID, claim.Amount, claim.BlockHeight, claim.ValidHeight)
			return nil
		},
	}
}

func proofCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proof <name>",
		Short: "print a Merkle proof for a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := openTrie(cmd)
			if err != nil {
				return err
			}
			defer ct.Close()

			proof := ct.GetProof([]byte(args[0]))
			fmt.Printf("exists=%v nodes=%d\n", proof.Exists, len(proof.Nodes))
			if proof.Value != nil {
				fmt.Printf("value=%s\n", hex.EncodeToString(proof.Value[:]))
			}
			return nil
		},
	}
}

func totalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "print aggregate name/claim/value totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := openTrie(cmd)
			if err != nil {
				return err
			}
			defer ct.Close()

			totals, err := ct.GetTotals()
			if err != nil {
				return err
			}
			fmt.Printf("names=%d claims=%d value=%d\n", totals.Names, totals.Claims, totals.Value)
			return nil
		},
	}
}
