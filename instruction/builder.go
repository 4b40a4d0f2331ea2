package instruction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/pda"
)

// NoopProgramID is the logging/no-op program referenced by dispatch and
// process instructions.
var NoopProgramID = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")

// MailboxAccounts bundles everything a caller must persist after
// initializing a mailbox. Immutable once created.
type MailboxAccounts struct {
	Program    solana.PublicKey
	Inbox      solana.PublicKey
	InboxBump  uint8
	Outbox     solana.PublicKey
	OutboxBump uint8
	DefaultISM solana.PublicKey
}

// InitializeMailbox builds the instruction creating a mailbox's inbox and
// outbox accounts. The derivation is deterministic, so calling this twice
// yields the same MailboxAccounts both times; a second submission is a
// backend-level conflict, not a client error.
func InitializeMailbox(
	program solana.PublicKey,
	payer solana.PublicKey,
	localDomain mailbox.Domain,
	defaultISM solana.PublicKey,
) (solana.Instruction, MailboxAccounts, error) {
	inbox, err := pda.Inbox(program)
	if err != nil {
		return nil, MailboxAccounts{}, err
	}
	outbox, err := pda.Outbox(program)
	if err != nil {
		return nil, MailboxAccounts{}, err
	}

	data, err := MarshalPayload(TagInit, Init{
		LocalDomain: uint32(localDomain),
		DefaultISM:  mailbox.Address(defaultISM),
	})
	if err != nil {
		return nil, MailboxAccounts{}, err
	}

	ix := solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.SystemProgramID, true, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(inbox.Address, true, false),
		solana.NewAccountMeta(outbox.Address, true, false),
	}, data)

	return ix, MailboxAccounts{
		Program:    program,
		Inbox:      inbox.Address,
		InboxBump:  inbox.Bump,
		Outbox:     outbox.Address,
		OutboxBump: outbox.Bump,
		DefaultISM: defaultISM,
	}, nil
}

// Dispatch builds the outbox-dispatch instruction. It generates a fresh
// one-time key whose sole purpose is making the dispatched-message address
// unique and unpredictable; the caller must co-sign the transaction with it
// and then discard it. Also returns the dispatched-message address so the
// caller can poll for the record.
func Dispatch(
	program solana.PublicKey,
	outbox solana.PublicKey,
	payer solana.PublicKey,
	msg OutboxDispatch,
) (solana.Instruction, solana.PrivateKey, solana.PublicKey, error) {
	if len(msg.Body) > mailbox.MaxBodySize {
		return nil, nil, solana.PublicKey{}, mailbox.ErrBodyTooLarge
	}

	unique := solana.NewWallet()
	dispatched, err := pda.DispatchedMessage(program, unique.PublicKey())
	if err != nil {
		return nil, nil, solana.PublicKey{}, err
	}

	data, err := MarshalPayload(TagOutboxDispatch, msg)
	if err != nil {
		return nil, nil, solana.PublicKey{}, err
	}

	ix := solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(outbox, true, false),
		solana.NewAccountMeta(solana.PublicKey(msg.Sender), true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(NoopProgramID, false, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(unique.PublicKey(), true, true),
		solana.NewAccountMeta(dispatched.Address, true, false),
	}, data)

	return ix, unique.PrivateKey, dispatched.Address, nil
}

// Process builds the inbox-process instruction. The three sub-policy
// instructions (ISM lookup, ISM verification, recipient handling) are
// consumed only for their program ids and account dependencies; their
// account lists are flattened, order preserved, into this instruction so
// the whole delivery is one atomic operation.
func Process(
	program solana.PublicKey,
	inbox solana.PublicKey,
	payer solana.PublicKey,
	metadata []byte,
	msg mailbox.Message,
	getISM solana.Instruction,
	ismVerify solana.Instruction,
	recipientHandle solana.Instruction,
) (solana.Instruction, error) {
	recipient := recipientHandle.ProgramID()

	authority, err := pda.ProcessAuthority(program, recipient)
	if err != nil {
		return nil, err
	}
	id, err := msg.ID()
	if err != nil {
		return nil, err
	}
	processed, err := pda.ProcessedMessage(program, id)
	if err != nil {
		return nil, err
	}

	encoded, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", id, err)
	}
	data, err := MarshalPayload(TagInboxProcess, InboxProcess{
		Metadata: mailbox.CloneBytes(metadata),
		Message:  encoded,
	})
	if err != nil {
		return nil, err
	}

	metas := make(solana.AccountMetaSlice, 0,
		8+len(getISM.Accounts())+len(ismVerify.Accounts())+len(recipientHandle.Accounts()))
	metas = append(metas,
		solana.NewAccountMeta(payer, false, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(inbox, true, false),
		solana.NewAccountMeta(authority.Address, false, false),
		solana.NewAccountMeta(processed.Address, true, false),
	)
	metas = append(metas, getISM.Accounts()...)
	metas = append(metas,
		solana.NewAccountMeta(NoopProgramID, false, false),
		solana.NewAccountMeta(ismVerify.ProgramID(), false, false),
	)
	metas = append(metas, ismVerify.Accounts()...)
	metas = append(metas, solana.NewAccountMeta(recipient, false, false))
	metas = append(metas, recipientHandle.Accounts()...)

	return solana.NewInstruction(program, metas, data), nil
}

// Empty returns an instruction with no accounts and no payload. It stands
// in for a sub-policy that declares no account dependencies, so Process can
// be composed uniformly.
func Empty(program solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(program, solana.AccountMetaSlice{}, nil)
}
