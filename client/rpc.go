package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 60 * time.Second
)

// Config carries the backend policy explicitly; nothing here is ambient
// process state.
type Config struct {
	Endpoint       string
	Commitment     rpc.CommitmentType
	SkipPreflight  bool
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// RPC is the live-network backend.
type RPC struct {
	rpc *rpc.Client
	cfg Config
}

var _ Backend = (*RPC)(nil)

func NewRPC(cfg Config) *RPC {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	return &RPC{rpc: rpc.New(cfg.Endpoint), cfg: cfg}
}

func (c *RPC) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

func (c *RPC) SendAndConfirmTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.cfg.SkipPreflight,
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		// Transient status errors are retried until the confirm timeout.
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return sig, &RejectionError{Reason: fmt.Sprintf("%v", status.Err)}
			}
			if atCommitment(status.ConfirmationStatus, c.cfg.Commitment) {
				return sig, nil
			}
		}
		select {
		case <-ctx.Done():
			return sig, fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func atCommitment(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed ||
			status == rpc.ConfirmationStatusFinalized
	default:
		return status != ""
	}
}

func (c *RPC) Account(ctx context.Context, address solana.PublicKey) ([]byte, bool, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: c.cfg.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get account %s: %w", address, err)
	}
	if res.Value == nil {
		return nil, false, nil
	}
	return res.Value.Data.GetBinary(), true, nil
}
