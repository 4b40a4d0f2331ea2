package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/client"
	"github.com/crosslane-network/mailbox/instruction"
	"github.com/crosslane-network/mailbox/pda"
)

// send --destination-domain <u32> --recipient <hex32> --body <hex>:
// dispatch a message into the outbox.
func sendCmd() *cobra.Command {
	var (
		destinationDomain uint32
		recipientHex      string
		bodyHex           string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Dispatch a message into the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawRecipient, err := hex.DecodeString(recipientHex)
			if err != nil {
				return fmt.Errorf("invalid --recipient: %w", err)
			}
			recipient, err := mailbox.AddressFromBytes(rawRecipient)
			if err != nil {
				return fmt.Errorf("invalid --recipient: %w", err)
			}
			body, err := hex.DecodeString(bodyHex)
			if err != nil {
				return fmt.Errorf("invalid --body: %w", err)
			}

			outbox, err := pda.Outbox(program)
			if err != nil {
				return err
			}
			ix, uniqueKey, dispatched, err := instruction.Dispatch(
				program, outbox.Address, payer.PublicKey(), instruction.OutboxDispatch{
					Sender:            mailbox.Address(payer.PublicKey()),
					DestinationDomain: destinationDomain,
					Recipient:         recipient,
					Body:              body,
				})
			if err != nil {
				return err
			}
			sig, err := client.SendAndConfirm(cmd.Context(), backend,
				[]solana.Instruction{ix}, payer.PublicKey(),
				[]solana.PrivateKey{payer, uniqueKey})
			if err != nil {
				return err
			}

			logger.Info().
				Str("signature", sig.String()).
				Uint32("destination_domain", destinationDomain).
				Msg("Dispatched message")
			fmt.Printf("dispatched message account: %s\n", dispatched)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&destinationDomain, "destination-domain", 0, "destination domain id")
	cmd.Flags().StringVar(&recipientHex, "recipient", "", "recipient identity (32-byte hex)")
	cmd.Flags().StringVar(&bodyHex, "body", "", "message body (hex)")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}
