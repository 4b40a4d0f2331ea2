package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslane-network/mailbox"
)

func TestDerivation_Deterministic(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	unique := solana.NewWallet().PublicKey()
	id := mailbox.MessageID{1, 2, 3}

	derivations := map[string]func() (Derived, error){
		"inbox":              func() (Derived, error) { return Inbox(program) },
		"outbox":             func() (Derived, error) { return Outbox(program) },
		"dispatched message": func() (Derived, error) { return DispatchedMessage(program, unique) },
		"processed message":  func() (Derived, error) { return ProcessedMessage(program, id) },
		"process authority":  func() (Derived, error) { return ProcessAuthority(program, unique) },
	}
	for name, derive := range derivations {
		t.Run(name, func(t *testing.T) {
			first, err := derive()
			require.NoError(t, err)
			second, err := derive()
			require.NoError(t, err)
			assert.Equal(t, first.Address, second.Address)
			assert.Equal(t, first.Bump, second.Bump)
		})
	}
}

func TestDerivation_DistinctAcrossSeeds(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	keyA := solana.NewWallet().PublicKey()
	keyB := solana.NewWallet().PublicKey()

	inbox, err := Inbox(program)
	require.NoError(t, err)
	outbox, err := Outbox(program)
	require.NoError(t, err)
	dispatchedA, err := DispatchedMessage(program, keyA)
	require.NoError(t, err)
	dispatchedB, err := DispatchedMessage(program, keyB)
	require.NoError(t, err)
	processed, err := ProcessedMessage(program, mailbox.MessageID{9})
	require.NoError(t, err)

	seen := map[solana.PublicKey]string{}
	for name, d := range map[string]Derived{
		"inbox":        inbox,
		"outbox":       outbox,
		"dispatched A": dispatchedA,
		"dispatched B": dispatchedB,
		"processed":    processed,
	} {
		prev, dup := seen[d.Address]
		assert.Falsef(t, dup, "%s collides with %s", name, prev)
		seen[d.Address] = name
	}
}

func TestDerivation_DistinctAcrossPrograms(t *testing.T) {
	inboxA, err := Inbox(solana.NewWallet().PublicKey())
	require.NoError(t, err)
	inboxB, err := Inbox(solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, inboxA.Address, inboxB.Address)
}
