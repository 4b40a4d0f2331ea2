// Package relay chains the instruction builders through a backend: dispatch
// a message, poll for its on-chain record, then process it into the inbox.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/client"
	"github.com/crosslane-network/mailbox/instruction"
)

var (
	ErrNotInInitializedState = errors.New("relayer not in initialized state")
	ErrNotInDispatchedState  = errors.New("relayer not in dispatched state")
	ErrNotInRetrievedState   = errors.New("relayer not in retrieved state")
)

const defaultPollInterval = 250 * time.Millisecond

// State tracks the relay machine for a single message.
type State int

const (
	StateInitialized State = iota
	StateDispatched
	StateRetrieved
	StateProcessed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateDispatched:
		return "Dispatched"
	case StateRetrieved:
		return "Retrieved"
	case StateProcessed:
		return "Processed"
	default:
		return "Unknown"
	}
}

// TransitionError reports which transition failed and the backend cause.
// The dispatch and process transitions are safe to retry: their derived
// addresses are deterministic and the program rejects duplicates.
type TransitionError struct {
	From State
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("relay transition from %s: %v", e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Relayer drives one message through dispatch, retrieval and processing.
// Independent messages may be relayed concurrently by independent Relayers:
// each derives disjoint addresses and they share nothing but the backend.
type Relayer struct {
	mu sync.Mutex

	// Dependencies
	backend client.Backend

	// Mailbox configuration
	program     solana.PublicKey
	payer       solana.PrivateKey
	localDomain mailbox.Domain
	defaultISM  solana.PublicKey

	pollInterval time.Duration

	// Protocol state
	state      State
	accounts   instruction.MailboxAccounts
	dispatched solana.PublicKey
	message    mailbox.Message

	logger zerolog.Logger
}

type Option func(*Relayer)

// WithPollInterval overrides how often AwaitDispatched re-reads the
// dispatched-message account.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relayer) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func NewRelayer(
	backend client.Backend,
	program solana.PublicKey,
	payer solana.PrivateKey,
	localDomain mailbox.Domain,
	defaultISM solana.PublicKey,
	logger zerolog.Logger,
	opts ...Option,
) *Relayer {
	r := &Relayer{
		backend:      backend,
		program:      program,
		payer:        payer,
		localDomain:  localDomain,
		defaultISM:   defaultISM,
		pollInterval: defaultPollInterval,
		state:        StateInitialized,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relayer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MailboxAccounts returns the account bundle once the relayer has reached
// the Dispatched state.
func (r *Relayer) MailboxAccounts() instruction.MailboxAccounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts
}

// DispatchedAddress returns the dispatched-message account address once the
// relayer has reached the Dispatched state.
func (r *Relayer) DispatchedAddress() solana.PublicKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatched
}

// Message returns the retrieved message once the relayer has reached the
// Retrieved state.
func (r *Relayer) Message() mailbox.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Dispatch moves Initialized -> Dispatched: it initializes the mailbox if
// the inbox account does not exist yet, then submits the outbox dispatch.
// The one-time dispatch key never leaves this method.
func (r *Relayer) Dispatch(ctx context.Context, msg instruction.OutboxDispatch) (solana.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateInitialized {
		return solana.PublicKey{}, r.fail(ErrNotInInitializedState)
	}
	payer := r.payer.PublicKey()

	initIx, accounts, err := instruction.InitializeMailbox(r.program, payer, r.localDomain, r.defaultISM)
	if err != nil {
		return solana.PublicKey{}, r.fail(err)
	}

	_, exists, err := r.backend.Account(ctx, accounts.Inbox)
	if err != nil {
		return solana.PublicKey{}, r.fail(err)
	}
	if !exists {
		_, err := client.SendAndConfirm(ctx, r.backend,
			[]solana.Instruction{initIx}, payer, []solana.PrivateKey{r.payer})
		switch {
		case err == nil:
			r.logger.Info().
				Str("inbox", accounts.Inbox.String()).
				Str("outbox", accounts.Outbox.String()).
				Uint32("local_domain", uint32(r.localDomain)).
				Msg("Initialized mailbox")
		case client.IsRejection(err):
			// Lost an init race: the mailbox exists, which is all we need.
			r.logger.Info().Msg("Mailbox already initialized")
		default:
			return solana.PublicKey{}, r.fail(err)
		}
	}

	dispatchIx, uniqueKey, dispatched, err := instruction.Dispatch(r.program, accounts.Outbox, payer, msg)
	if err != nil {
		return solana.PublicKey{}, r.fail(err)
	}
	sig, err := client.SendAndConfirm(ctx, r.backend,
		[]solana.Instruction{dispatchIx}, payer, []solana.PrivateKey{r.payer, uniqueKey})
	if err != nil {
		return solana.PublicKey{}, r.fail(err)
	}

	r.logger.Info().
		Str("signature", sig.String()).
		Str("dispatched_message", dispatched.String()).
		Uint32("destination_domain", msg.DestinationDomain).
		Msg("Dispatched message")

	r.accounts = accounts
	r.dispatched = dispatched
	r.state = StateDispatched
	return dispatched, nil
}

// AwaitDispatched moves Dispatched -> Retrieved: it polls the dispatched
// message account until the backend's finality makes it visible, then
// decodes the record and its embedded canonical message.
func (r *Relayer) AwaitDispatched(ctx context.Context) (mailbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateDispatched {
		return mailbox.Message{}, r.fail(ErrNotInDispatchedState)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var record mailbox.DispatchedMessageRecord
	for {
		exists, err := client.ReadAccountInto(ctx, r.backend, r.dispatched, &record)
		if err != nil {
			return mailbox.Message{}, r.fail(err)
		}
		if exists {
			break
		}
		select {
		case <-ctx.Done():
			return mailbox.Message{}, r.fail(ctx.Err())
		case <-ticker.C:
		}
	}

	msg, err := mailbox.DecodeMessage(record.EncodedMessage)
	if err != nil {
		return mailbox.Message{}, r.fail(err)
	}

	r.logger.Info().
		Uint32("nonce", msg.Nonce).
		Str("recipient", msg.Recipient.String()).
		Int("body_len", len(msg.Body)).
		Msg("Retrieved dispatched message")

	r.message = msg
	r.state = StateRetrieved
	return msg, nil
}

// Process moves Retrieved -> Processed: it builds the inbox-process
// instruction from the retrieved message and the externally resolved
// sub-policy stubs, then submits it.
func (r *Relayer) Process(
	ctx context.Context,
	metadata []byte,
	getISM solana.Instruction,
	ismVerify solana.Instruction,
	recipientHandle solana.Instruction,
) (solana.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRetrieved {
		return solana.Signature{}, r.fail(ErrNotInRetrievedState)
	}
	payer := r.payer.PublicKey()

	ix, err := instruction.Process(r.program, r.accounts.Inbox, payer,
		metadata, r.message, getISM, ismVerify, recipientHandle)
	if err != nil {
		return solana.Signature{}, r.fail(err)
	}
	sig, err := client.SendAndConfirm(ctx, r.backend,
		[]solana.Instruction{ix}, payer, []solana.PrivateKey{r.payer})
	if err != nil {
		return solana.Signature{}, r.fail(err)
	}

	id, err := r.message.ID()
	if err != nil {
		return solana.Signature{}, r.fail(err)
	}
	r.logger.Info().
		Str("signature", sig.String()).
		Str("message_id", id.String()).
		Msg("Processed message")

	r.state = StateProcessed
	return sig, nil
}

// Run drives one message through all three transitions.
func (r *Relayer) Run(
	ctx context.Context,
	msg instruction.OutboxDispatch,
	metadata []byte,
	getISM solana.Instruction,
	ismVerify solana.Instruction,
	recipientHandle solana.Instruction,
) error {
	if _, err := r.Dispatch(ctx, msg); err != nil {
		return err
	}
	if _, err := r.AwaitDispatched(ctx); err != nil {
		return err
	}
	_, err := r.Process(ctx, metadata, getISM, ismVerify, recipientHandle)
	return err
}

// fail wraps err with the state the relayer was in. Callers decide whether
// to retry; no cross-transition recovery happens here.
func (r *Relayer) fail(err error) error {
	r.logger.Info().
		Str("state", r.state.String()).
		Msg("Relay transition failed: " + err.Error())
	return &TransitionError{From: r.state, Err: err}
}
