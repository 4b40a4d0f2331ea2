// Package instruction builds the mailbox program's three instructions.
// Account order, mutability/signer flags and payload bytes are part of the
// protocol's binary contract with the on-chain program; permuting any of
// them changes meaning or causes rejection.
package instruction

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/crosslane-network/mailbox"
)

// Tag discriminates mailbox program operations. Values are fixed by the
// on-chain program and must not be renumbered independently of it.
type Tag uint8

const (
	TagInit Tag = iota
	TagOutboxDispatch
	TagInboxProcess
)

var ErrEmptyPayload = errors.New("instruction data is empty")

// Init creates a mailbox for one local domain.
type Init struct {
	LocalDomain uint32
	DefaultISM  mailbox.Address
}

// OutboxDispatch is the payload of a dispatch operation. Nonce and origin
// domain are assigned by the outbox at execution time.
type OutboxDispatch struct {
	Sender            mailbox.Address
	DestinationDomain uint32
	Recipient         mailbox.Address
	Body              []byte
}

// InboxProcess carries the ISM metadata plus the message in its canonical
// encoding.
type InboxProcess struct {
	Metadata []byte
	Message  []byte
}

// MarshalPayload prepends the operation tag to the borsh encoding of v.
// Failures are construction-time errors and must never reach a backend.
func MarshalPayload(tag Tag, v interface{}) ([]byte, error) {
	raw, err := borsh.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T payload: %w", v, err)
	}
	return append([]byte{byte(tag)}, raw...), nil
}

// SplitTag separates the operation tag from the borsh body.
func SplitTag(data []byte) (Tag, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrEmptyPayload
	}
	return Tag(data[0]), data[1:], nil
}
