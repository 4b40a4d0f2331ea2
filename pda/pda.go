// Package pda derives the program-derived addresses the mailbox program
// expects. Derivation is deterministic: identical seeds always yield the
// same address and bump, so retries land on the same accounts.
package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/crosslane-network/mailbox"
)

// Seed labels fixed by the on-chain program.
var (
	seedPrefix           = []byte("crosslane")
	seedSeparator        = []byte("-")
	seedInbox            = []byte("inbox")
	seedOutbox           = []byte("outbox")
	seedDispatchedMsg    = []byte("dispatched_message")
	seedProcessedMsg     = []byte("processed_message")
	seedProcessAuthority = []byte("process_authority")
)

// Derived is an address together with the bump proof that authorizes the
// program to sign for it. The bump is only valid for the exact seed set it
// was derived from and must accompany every instruction referencing the
// account.
type Derived struct {
	Address solana.PublicKey
	Bump    uint8
}

func find(program solana.PublicKey, seeds [][]byte) (Derived, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		// The bump space is exhausted only for pathological seed sets;
		// treat it as a configuration fault.
		return Derived{}, fmt.Errorf("derive program address: %w", err)
	}
	return Derived{Address: addr, Bump: bump}, nil
}

// Inbox derives the mailbox's inbox account.
func Inbox(program solana.PublicKey) (Derived, error) {
	return find(program, [][]byte{seedPrefix, seedSeparator, seedInbox})
}

// Outbox derives the mailbox's outbox account.
func Outbox(program solana.PublicKey) (Derived, error) {
	return find(program, [][]byte{seedPrefix, seedSeparator, seedOutbox})
}

// DispatchedMessage derives the account holding one dispatched message,
// keyed by the dispatch's one-time unique key.
func DispatchedMessage(program, uniqueKey solana.PublicKey) (Derived, error) {
	return find(program, [][]byte{
		seedPrefix, seedSeparator, seedDispatchedMsg, seedSeparator, uniqueKey.Bytes(),
	})
}

// ProcessedMessage derives the replay-protection account for a message id.
func ProcessedMessage(program solana.PublicKey, id mailbox.MessageID) (Derived, error) {
	return find(program, [][]byte{
		seedPrefix, seedSeparator, seedProcessedMsg, seedSeparator, id.Bytes(),
	})
}

// ProcessAuthority derives the authority the mailbox uses when invoking a
// recipient program's handler.
func ProcessAuthority(program, recipient solana.PublicKey) (Derived, error) {
	return find(program, [][]byte{
		seedPrefix, seedSeparator, seedProcessAuthority, seedSeparator, recipient.Bytes(),
	})
}
