package mailbox

// Account records stored by the mailbox program. Layouts are borsh and are
// shared with the on-chain program; field order is part of the protocol.
// On chain each record is prefixed by a 1-byte existence discriminator that
// readers skip (see client.ReadAccountInto).

// OutboxRecord lives at the outbox PDA and counts dispatched messages. The
// count doubles as the nonce of the next dispatched message.
type OutboxRecord struct {
	LocalDomain   uint32
	DispatchCount uint32
}

// InboxRecord lives at the inbox PDA.
type InboxRecord struct {
	LocalDomain    uint32
	DefaultISM     Address
	ProcessedCount uint64
}

// DispatchedMessageRecord is written once per dispatch at the PDA derived
// from the dispatch's one-time unique key.
type DispatchedMessageRecord struct {
	Nonce          uint32
	UniqueKey      Address
	EncodedMessage []byte
}

// ProcessedMessageRecord marks a message id as delivered. At most one exists
// per id; its presence is the protocol's replay protection.
type ProcessedMessageRecord struct {
	ID       MessageID
	Sequence uint64
}
