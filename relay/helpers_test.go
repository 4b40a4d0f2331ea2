package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// absentBackend accepts every transaction and never shows any account,
// keeping a relayer stuck in its retrieval polling loop.
type absentBackend struct{}

func (absentBackend) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{0x11}, nil
}

func (absentBackend) SendAndConfirmTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return tx.Signatures[0], nil
}

func (absentBackend) Account(context.Context, solana.PublicKey) ([]byte, bool, error) {
	return nil, false, nil
}
