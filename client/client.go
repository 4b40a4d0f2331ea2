// Package client defines the two capability contracts a backend must
// satisfy — send-and-confirm and read-account — and the compositions every
// call site shares. A live RPC node and the in-process simnode backend are
// interchangeable behind these interfaces; protocol construction never sees
// backend-specific types.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

var (
	// ErrDecode marks account bytes that did not match the expected schema.
	// Distinct from absence, which is never an error.
	ErrDecode = errors.New("account data does not match schema")

	// ErrNoSigner is returned when a required signer has no private key in
	// the supplied set.
	ErrNoSigner = errors.New("missing private key for required signer")
)

// RejectionError reports that the backend executed the transaction and the
// on-chain program rejected its semantics. Retrying the same bytes is
// pointless, unlike a transport failure.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "program rejected transaction: " + e.Reason
}

// IsRejection reports whether err is a protocol-level rejection rather than
// a transport failure.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}

// TransactionSender is the send-and-confirm capability.
type TransactionSender interface {
	// SendAndConfirmTransaction submits a signed transaction and blocks
	// until the backend reports finality or rejection.
	SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// LatestBlockhash fetches a recent liveness token for transaction
	// construction.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// AccountReader is the read-account capability. Absence is reported
// explicitly via the bool, never as an error.
type AccountReader interface {
	Account(ctx context.Context, address solana.PublicKey) (data []byte, exists bool, err error)
}

// Backend is the full capability set a relay workflow needs.
type Backend interface {
	TransactionSender
	AccountReader
}

// SendAndConfirm builds one atomic transaction from the instructions, signs
// it with the given keys and submits it. Provided once here so call sites
// do not re-derive the blockhash/build/sign/submit sequence.
func SendAndConfirm(
	ctx context.Context,
	sender TransactionSender,
	instructions []solana.Instruction,
	payer solana.PublicKey,
	signers []solana.PrivateKey,
) (solana.Signature, error) {
	blockhash, err := sender.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch latest blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrNoSigner, err)
	}
	return sender.SendAndConfirmTransaction(ctx, tx)
}

// ReadAccountInto reads an account and borsh-decodes it into out, skipping
// the backend's 1-byte existence discriminator. Returns (false, nil) when
// the account does not exist; a decode failure is an error distinct from
// absence.
func ReadAccountInto(
	ctx context.Context,
	reader AccountReader,
	address solana.PublicKey,
	out interface{},
) (bool, error) {
	data, exists, err := reader.Account(ctx, address)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if len(data) < 1 {
		return true, fmt.Errorf("%w: account %s is empty", ErrDecode, address)
	}
	if err := borsh.Deserialize(out, data[1:]); err != nil {
		return true, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return true, nil
}
