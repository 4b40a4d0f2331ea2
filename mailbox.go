package mailbox

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// MessageVersion is the canonical message encoding version shared with the
// on-chain mailbox program.
const MessageVersion uint8 = 0

// MaxBodySize bounds a message body at construction time. An oversized body
// cannot fit a single transaction and must never reach a backend.
const MaxBodySize = 2048

var (
	ErrBodyTooLarge  = errors.New("message body exceeds MaxBodySize")
	ErrBadVersion    = errors.New("unsupported message version")
	ErrTruncated     = errors.New("message bytes truncated")
	ErrTrailingBytes = errors.New("trailing bytes after message body")
)

type (
	// Domain identifies a chain/network participating in the protocol.
	Domain uint32

	// Address is a chain-agnostic 32-byte identity: a program id, contract
	// address or key, depending on the chain it lives on.
	Address [32]byte

	// MessageID is the content-derived identifier of a dispatched message.
	MessageID [32]byte
)

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// AddressFromBytes converts raw bytes into an Address. The input must be
// exactly 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != len(a) {
		return a, fmt.Errorf("address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (id MessageID) String() string {
	return hex.EncodeToString(id[:])
}

func (id MessageID) Bytes() []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

// Message is one cross-chain message as recorded in an outbox. Origin and
// Nonce are assigned by the local mailbox at dispatch time.
type Message struct {
	Version     uint8
	Nonce       uint32
	Origin      Domain
	Sender      Address
	Destination Domain
	Recipient   Address
	Body        []byte
}

// Canonical encoding: version, nonce, origin, sender, destination,
// recipient, body length, body. All integers big-endian. The layout is
// shared with the on-chain program; any divergence is protocol-breaking.
const messageHeaderSize = 1 + 4 + 4 + 32 + 4 + 32 + 4

// Encode returns the canonical binary encoding of the message.
func (m Message) Encode() ([]byte, error) {
	if len(m.Body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	buf := bytes.NewBuffer(make([]byte, 0, messageHeaderSize+len(m.Body)))
	var b4 [4]byte

	buf.WriteByte(m.Version)
	binary.BigEndian.PutUint32(b4[:], m.Nonce)
	buf.Write(b4[:])
	binary.BigEndian.PutUint32(b4[:], uint32(m.Origin))
	buf.Write(b4[:])
	buf.Write(m.Sender[:])
	binary.BigEndian.PutUint32(b4[:], uint32(m.Destination))
	buf.Write(b4[:])
	buf.Write(m.Recipient[:])
	binary.BigEndian.PutUint32(b4[:], uint32(len(m.Body)))
	buf.Write(b4[:])
	buf.Write(m.Body)

	return buf.Bytes(), nil
}

// DecodeMessage parses a canonical message encoding. The input must contain
// exactly one message.
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if len(raw) < messageHeaderSize {
		return m, ErrTruncated
	}
	if raw[0] != MessageVersion {
		return m, fmt.Errorf("%w: %d", ErrBadVersion, raw[0])
	}
	m.Version = raw[0]
	m.Nonce = binary.BigEndian.Uint32(raw[1:5])
	m.Origin = Domain(binary.BigEndian.Uint32(raw[5:9]))
	copy(m.Sender[:], raw[9:41])
	m.Destination = Domain(binary.BigEndian.Uint32(raw[41:45]))
	copy(m.Recipient[:], raw[45:77])
	bodyLen := binary.BigEndian.Uint32(raw[77:81])

	rest := raw[messageHeaderSize:]
	if uint32(len(rest)) < bodyLen {
		return m, ErrTruncated
	}
	if uint32(len(rest)) > bodyLen {
		return m, ErrTrailingBytes
	}
	m.Body = CloneBytes(rest)
	return m, nil
}

// ID returns the keccak-256 of the canonical encoding. Identical messages
// always produce identical IDs; the ID keys the processed-message record.
func (m Message) ID() (MessageID, error) {
	var id MessageID
	enc, err := m.Encode()
	if err != nil {
		return id, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(enc)
	copy(id[:], h.Sum(nil))
	return id, nil
}
