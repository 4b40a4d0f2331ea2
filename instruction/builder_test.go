package instruction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/pda"
)

type metaExpectation struct {
	address  solana.PublicKey
	writable bool
	signer   bool
}

func assertMetas(t *testing.T, ix solana.Instruction, want []metaExpectation) {
	t.Helper()
	metas := ix.Accounts()
	require.Len(t, metas, len(want))
	for i, w := range want {
		assert.Equalf(t, w.address, metas[i].PublicKey, "account %d address", i)
		assert.Equalf(t, w.writable, metas[i].IsWritable, "account %d writable flag", i)
		assert.Equalf(t, w.signer, metas[i].IsSigner, "account %d signer flag", i)
	}
}

func TestInitializeMailbox_AccountsAndPayload(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	ism := solana.NewWallet().PublicKey()

	ix, accounts, err := InitializeMailbox(program, payer, 42, ism)
	require.NoError(t, err)

	assert.Equal(t, program, ix.ProgramID())
	assertMetas(t, ix, []metaExpectation{
		{solana.SystemProgramID, true, false},
		{payer, true, true},
		{accounts.Inbox, true, false},
		{accounts.Outbox, true, false},
	})

	data, err := ix.Data()
	require.NoError(t, err)
	tag, body, err := SplitTag(data)
	require.NoError(t, err)
	assert.Equal(t, TagInit, tag)

	var init Init
	require.NoError(t, borsh.Deserialize(&init, body))
	assert.Equal(t, uint32(42), init.LocalDomain)
	assert.Equal(t, mailbox.Address(ism), init.DefaultISM)
}

func TestInitializeMailbox_DerivationIsIdempotent(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	ism := solana.NewWallet().PublicKey()

	_, first, err := InitializeMailbox(program, payer, 0, ism)
	require.NoError(t, err)
	_, second, err := InitializeMailbox(program, payer, 0, ism)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDispatch_AccountsAndUniqueKey(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	sender := solana.NewWallet().PublicKey()
	outbox, err := pda.Outbox(program)
	require.NoError(t, err)

	msg := OutboxDispatch{
		Sender:            mailbox.Address(sender),
		DestinationDomain: 3,
		Recipient:         mailbox.Address{0xCC},
		Body:              []byte{3, 3},
	}
	ix, uniqueKey, dispatched, err := Dispatch(program, outbox.Address, payer, msg)
	require.NoError(t, err)

	derived, err := pda.DispatchedMessage(program, uniqueKey.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, derived.Address, dispatched)

	assertMetas(t, ix, []metaExpectation{
		{outbox.Address, true, false},
		{sender, true, true},
		{solana.SystemProgramID, false, false},
		{NoopProgramID, false, false},
		{payer, true, true},
		{uniqueKey.PublicKey(), true, true},
		{dispatched, true, false},
	})

	data, err := ix.Data()
	require.NoError(t, err)
	tag, body, err := SplitTag(data)
	require.NoError(t, err)
	assert.Equal(t, TagOutboxDispatch, tag)

	var decoded OutboxDispatch
	require.NoError(t, borsh.Deserialize(&decoded, body))
	assert.Equal(t, msg.Sender, decoded.Sender)
	assert.Equal(t, msg.DestinationDomain, decoded.DestinationDomain)
	assert.Equal(t, msg.Recipient, decoded.Recipient)
	assert.Equal(t, msg.Body, decoded.Body)
}

func TestDispatch_FreshKeyPerCall(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	outbox, err := pda.Outbox(program)
	require.NoError(t, err)

	msg := OutboxDispatch{Sender: mailbox.Address(payer), Body: []byte{1}}
	_, keyA, addrA, err := Dispatch(program, outbox.Address, payer, msg)
	require.NoError(t, err)
	_, keyB, addrB, err := Dispatch(program, outbox.Address, payer, msg)
	require.NoError(t, err)

	assert.NotEqual(t, keyA.PublicKey(), keyB.PublicKey())
	assert.NotEqual(t, addrA, addrB)
}

func TestDispatch_BodyTooLarge(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()

	_, _, _, err := Dispatch(program, payer, payer, OutboxDispatch{
		Body: make([]byte, mailbox.MaxBodySize+1),
	})
	assert.ErrorIs(t, err, mailbox.ErrBodyTooLarge)
}

func TestProcess_FlattensSubInstructionAccounts(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	ismProgram := solana.NewWallet().PublicKey()
	recipientProgram := solana.NewWallet().PublicKey()
	inbox, err := pda.Inbox(program)
	require.NoError(t, err)

	getISMExtra := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false),
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
	}
	verifyExtra := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false),
	}
	handleExtra := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false),
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false),
	}

	msg := mailbox.Message{
		Version:   mailbox.MessageVersion,
		Recipient: mailbox.Address(recipientProgram),
		Body:      []byte{3, 3},
	}
	ix, err := Process(program, inbox.Address, payer, []byte{0xEE}, msg,
		solana.NewInstruction(program, getISMExtra, nil),
		solana.NewInstruction(ismProgram, verifyExtra, nil),
		solana.NewInstruction(recipientProgram, handleExtra, nil),
	)
	require.NoError(t, err)

	id, err := msg.ID()
	require.NoError(t, err)
	authority, err := pda.ProcessAuthority(program, recipientProgram)
	require.NoError(t, err)
	processed, err := pda.ProcessedMessage(program, id)
	require.NoError(t, err)

	want := []metaExpectation{
		{payer, false, true},
		{solana.SystemProgramID, false, false},
		{inbox.Address, true, false},
		{authority.Address, false, false},
		{processed.Address, true, false},
	}
	for _, m := range getISMExtra {
		want = append(want, metaExpectation{m.PublicKey, m.IsWritable, m.IsSigner})
	}
	want = append(want,
		metaExpectation{NoopProgramID, false, false},
		metaExpectation{ismProgram, false, false},
	)
	for _, m := range verifyExtra {
		want = append(want, metaExpectation{m.PublicKey, m.IsWritable, m.IsSigner})
	}
	want = append(want, metaExpectation{recipientProgram, false, false})
	for _, m := range handleExtra {
		want = append(want, metaExpectation{m.PublicKey, m.IsWritable, m.IsSigner})
	}

	// 5 fixed + |getISM| + 2 fixed + |ismVerify| + 1 fixed + |recipientHandle|
	require.Len(t, ix.Accounts(),
		5+len(getISMExtra)+2+len(verifyExtra)+1+len(handleExtra))
	assertMetas(t, ix, want)

	data, err := ix.Data()
	require.NoError(t, err)
	tag, body, err := SplitTag(data)
	require.NoError(t, err)
	assert.Equal(t, TagInboxProcess, tag)

	var payload InboxProcess
	require.NoError(t, borsh.Deserialize(&payload, body))
	assert.Equal(t, []byte{0xEE}, payload.Metadata)
	encoded, err := msg.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, payload.Message)
}

func TestProcess_EmptyStubsYieldFixedPrefixOnly(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	inbox, err := pda.Inbox(program)
	require.NoError(t, err)

	msg := mailbox.Message{Version: mailbox.MessageVersion, Recipient: mailbox.Address(recipient)}
	ix, err := Process(program, inbox.Address, payer, nil, msg,
		Empty(recipient), Empty(NoopProgramID), Empty(recipient))
	require.NoError(t, err)

	// 5 + 0 + 2 + 0 + 1 + 0
	assert.Len(t, ix.Accounts(), 8)
}

func TestEmpty(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	ix := Empty(program)

	assert.Equal(t, program, ix.ProgramID())
	assert.Empty(t, ix.Accounts())
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSplitTag_Empty(t *testing.T) {
	_, _, err := SplitTag(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}
