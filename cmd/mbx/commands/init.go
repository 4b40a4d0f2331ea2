package commands

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/client"
	"github.com/crosslane-network/mailbox/instruction"
)

// init --local-domain <u32> --default-ism <base58>: create the mailbox.
func initCmd() *cobra.Command {
	var (
		localDomain uint32
		defaultISM  string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the mailbox for a local domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ism, err := solana.PublicKeyFromBase58(defaultISM)
			if err != nil {
				return fmt.Errorf("invalid --default-ism: %w", err)
			}

			ix, accounts, err := instruction.InitializeMailbox(
				program, payer.PublicKey(), mailbox.Domain(localDomain), ism)
			if err != nil {
				return err
			}
			sig, err := client.SendAndConfirm(cmd.Context(), backend,
				[]solana.Instruction{ix}, payer.PublicKey(), []solana.PrivateKey{payer})
			if err != nil {
				return err
			}

			logger.Info().
				Str("signature", sig.String()).
				Uint32("local_domain", localDomain).
				Msg("Initialized mailbox")
			fmt.Printf("inbox:  %s\noutbox: %s\n", accounts.Inbox, accounts.Outbox)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&localDomain, "local-domain", 0, "local domain id")
	cmd.Flags().StringVar(&defaultISM, "default-ism", "", "default ISM program id (base58)")
	_ = cmd.MarkFlagRequired("default-ism")
	return cmd
}
