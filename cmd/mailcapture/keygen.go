package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/filestore"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair for sealing captured messages",
		Long: "Generate an X25519 key pair and print it as store options.\n" +
			"Writers only need seal_public_key; readers need seal_private_key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := mailcapture.GenerateSealKeys()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"# %s\n[store.options]\n%s = %q\n%s = %q\n",
				mailcapture.SealAlgorithm,
				filestore.OptionSealPublicKey, pub,
				filestore.OptionSealPrivateKey, priv)
			return err
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
