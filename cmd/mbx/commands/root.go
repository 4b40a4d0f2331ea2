package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crosslane-network/mailbox/client"
)

var (
	rpcURL      string
	programID   string
	keypairPath string
	commitment  string
	timeout     time.Duration

	backend *client.RPC
	program solana.PublicKey
	payer   solana.PrivateKey
	logger  zerolog.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:   "mbx",
		Short: "Build and submit mailbox transactions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				With().Timestamp().Logger()

			var err error
			program, err = solana.PublicKeyFromBase58(programID)
			if err != nil {
				return fmt.Errorf("invalid --program: %w", err)
			}
			payer, err = solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
			if err != nil {
				return fmt.Errorf("load keypair: %w", err)
			}
			backend = client.NewRPC(client.Config{
				Endpoint:       rpcURL,
				Commitment:     rpc.CommitmentType(commitment),
				ConfirmTimeout: timeout,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rpcURL, "rpc-url", "http://127.0.0.1:8899", "RPC endpoint")
	root.PersistentFlags().StringVar(&programID, "program", "", "mailbox program id (base58)")
	root.PersistentFlags().StringVar(&keypairPath, "keypair", "", "path to the payer keypair file")
	root.PersistentFlags().StringVar(&commitment, "commitment", string(rpc.CommitmentConfirmed), "commitment level")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "confirmation timeout")
	_ = root.MarkPersistentFlagRequired("program")
	_ = root.MarkPersistentFlagRequired("keypair")

	root.AddCommand(initCmd(), sendCmd())
	return root.Execute()
}
