// Package simnode is a deterministic in-process backend. It applies the
// mailbox program's semantics to submitted transactions and satisfies the
// same capability contracts as the live RPC backend, so builders and
// workflows run against either unchanged.
package simnode

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"github.com/crosslane-network/mailbox"
	"github.com/crosslane-network/mailbox/client"
	"github.com/crosslane-network/mailbox/instruction"
	"github.com/crosslane-network/mailbox/pda"
)

// Node holds all on-chain state in memory. Accounts are stored exactly as a
// validator would return them: a 1-byte existence discriminator followed by
// the borsh record.
type Node struct {
	mu       sync.Mutex
	program  solana.PublicKey
	accounts map[solana.PublicKey][]byte
	slot     uint64
}

var _ client.Backend = (*Node)(nil)

func New(program solana.PublicKey) *Node {
	return &Node{
		program:  program,
		accounts: make(map[solana.PublicKey][]byte),
	}
}

// LatestBlockhash returns a deterministic hash of an advancing slot counter.
func (n *Node) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slot++
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n.slot)
	return solana.Hash(sha256.Sum256(b[:])), nil
}

func (n *Node) Account(_ context.Context, address solana.PublicKey) ([]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, ok := n.accounts[address]
	if !ok {
		return nil, false, nil
	}
	return mailbox.CloneBytes(data), true, nil
}

// SendAndConfirmTransaction executes the transaction atomically: writes are
// staged and only committed if every instruction succeeds, so a rejected
// transaction leaves no partial state.
func (n *Node) SendAndConfirmTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, &client.RejectionError{Reason: "transaction has no signatures"}
	}
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return solana.Signature{}, &client.RejectionError{
			Reason: fmt.Sprintf("expected %d signatures, got %d",
				tx.Message.Header.NumRequiredSignatures, len(tx.Signatures)),
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	staged := make(map[solana.PublicKey][]byte)
	for _, compiled := range tx.Message.Instructions {
		if err := n.execute(&tx.Message, compiled, staged); err != nil {
			return solana.Signature{}, err
		}
	}
	for addr, data := range staged {
		n.accounts[addr] = data
	}
	return tx.Signatures[0], nil
}

func (n *Node) execute(msg *solana.Message, compiled solana.CompiledInstruction, staged map[solana.PublicKey][]byte) error {
	if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
		return reject("program id index out of range")
	}
	programID := msg.AccountKeys[compiled.ProgramIDIndex]
	if !programID.Equals(n.program) {
		// Instructions for other programs (noop, system) have no effect
		// a client can observe here.
		return nil
	}

	keys := make([]solana.PublicKey, len(compiled.Accounts))
	signer := make([]bool, len(compiled.Accounts))
	for i, idx := range compiled.Accounts {
		if int(idx) >= len(msg.AccountKeys) {
			return reject("account index out of range")
		}
		keys[i] = msg.AccountKeys[idx]
		signer[i] = int(idx) < int(msg.Header.NumRequiredSignatures)
	}

	tag, body, err := instruction.SplitTag(compiled.Data)
	if err != nil {
		return reject("malformed instruction data: %v", err)
	}
	switch tag {
	case instruction.TagInit:
		return n.executeInit(body, staged)
	case instruction.TagOutboxDispatch:
		return n.executeDispatch(body, keys, signer, staged)
	case instruction.TagInboxProcess:
		return n.executeProcess(body, keys, staged)
	default:
		return reject("unknown instruction tag %d", tag)
	}
}

func (n *Node) executeInit(body []byte, staged map[solana.PublicKey][]byte) error {
	var init instruction.Init
	if err := borsh.Deserialize(&init, body); err != nil {
		return reject("malformed init payload: %v", err)
	}
	inbox, err := pda.Inbox(n.program)
	if err != nil {
		return reject("%v", err)
	}
	outbox, err := pda.Outbox(n.program)
	if err != nil {
		return reject("%v", err)
	}
	if _, ok := n.lookup(inbox.Address, staged); ok {
		return reject("mailbox already initialized")
	}
	if err := stage(staged, inbox.Address, mailbox.InboxRecord{
		LocalDomain: init.LocalDomain,
		DefaultISM:  init.DefaultISM,
	}); err != nil {
		return err
	}
	return stage(staged, outbox.Address, mailbox.OutboxRecord{
		LocalDomain: init.LocalDomain,
	})
}

// Dispatch account order: outbox, sender, system, noop, payer, unique key,
// dispatched message.
func (n *Node) executeDispatch(body []byte, keys []solana.PublicKey, signer []bool, staged map[solana.PublicKey][]byte) error {
	var d instruction.OutboxDispatch
	if err := borsh.Deserialize(&d, body); err != nil {
		return reject("malformed dispatch payload: %v", err)
	}
	if len(keys) != 7 {
		return reject("dispatch expects 7 accounts, got %d", len(keys))
	}

	outbox, err := pda.Outbox(n.program)
	if err != nil {
		return reject("%v", err)
	}
	if !keys[0].Equals(outbox.Address) {
		return reject("account 0 is not the outbox")
	}
	raw, ok := n.lookup(outbox.Address, staged)
	if !ok {
		return reject("mailbox not initialized")
	}
	var rec mailbox.OutboxRecord
	if err := borsh.Deserialize(&rec, raw); err != nil {
		return reject("corrupt outbox record: %v", err)
	}

	unique := keys[5]
	if !signer[1] || !signer[5] {
		return reject("sender and unique message key must sign")
	}
	dispatched, err := pda.DispatchedMessage(n.program, unique)
	if err != nil {
		return reject("%v", err)
	}
	if !keys[6].Equals(dispatched.Address) {
		return reject("account 6 is not the dispatched message PDA")
	}
	if _, ok := n.lookup(dispatched.Address, staged); ok {
		return reject("dispatched message account already exists")
	}

	msg := mailbox.Message{
		Version:     mailbox.MessageVersion,
		Nonce:       rec.DispatchCount,
		Origin:      mailbox.Domain(rec.LocalDomain),
		Sender:      d.Sender,
		Destination: mailbox.Domain(d.DestinationDomain),
		Recipient:   d.Recipient,
		Body:        d.Body,
	}
	encoded, err := msg.Encode()
	if err != nil {
		return reject("encode dispatched message: %v", err)
	}
	if err := stage(staged, dispatched.Address, mailbox.DispatchedMessageRecord{
		Nonce:          rec.DispatchCount,
		UniqueKey:      mailbox.Address(unique),
		EncodedMessage: encoded,
	}); err != nil {
		return err
	}

	rec.DispatchCount++
	return stage(staged, outbox.Address, rec)
}

// Process account order starts: payer, system, inbox, process authority,
// processed message; sub-policy accounts follow and are not interpreted.
func (n *Node) executeProcess(body []byte, keys []solana.PublicKey, staged map[solana.PublicKey][]byte) error {
	var p instruction.InboxProcess
	if err := borsh.Deserialize(&p, body); err != nil {
		return reject("malformed process payload: %v", err)
	}
	if len(keys) < 5 {
		return reject("process expects at least 5 accounts, got %d", len(keys))
	}

	msg, err := mailbox.DecodeMessage(p.Message)
	if err != nil {
		return reject("malformed message encoding: %v", err)
	}

	inbox, err := pda.Inbox(n.program)
	if err != nil {
		return reject("%v", err)
	}
	if !keys[2].Equals(inbox.Address) {
		return reject("account 2 is not the inbox")
	}
	raw, ok := n.lookup(inbox.Address, staged)
	if !ok {
		return reject("mailbox not initialized")
	}
	var rec mailbox.InboxRecord
	if err := borsh.Deserialize(&rec, raw); err != nil {
		return reject("corrupt inbox record: %v", err)
	}
	if mailbox.Domain(rec.LocalDomain) != msg.Destination {
		return reject("message destination %d is not local domain %d", msg.Destination, rec.LocalDomain)
	}

	id, err := msg.ID()
	if err != nil {
		return reject("message id: %v", err)
	}
	processed, err := pda.ProcessedMessage(n.program, id)
	if err != nil {
		return reject("%v", err)
	}
	if !keys[4].Equals(processed.Address) {
		return reject("account 4 is not the processed message PDA")
	}
	if _, ok := n.lookup(processed.Address, staged); ok {
		return reject("message %s already processed", id)
	}

	if err := stage(staged, processed.Address, mailbox.ProcessedMessageRecord{
		ID:       id,
		Sequence: rec.ProcessedCount,
	}); err != nil {
		return err
	}
	rec.ProcessedCount++
	return stage(staged, inbox.Address, rec)
}

// lookup reads an account through the staged overlay, stripping the
// existence discriminator.
func (n *Node) lookup(addr solana.PublicKey, staged map[solana.PublicKey][]byte) ([]byte, bool) {
	data, ok := staged[addr]
	if !ok {
		data, ok = n.accounts[addr]
	}
	if !ok || len(data) < 1 {
		return nil, ok
	}
	return data[1:], true
}

func stage(staged map[solana.PublicKey][]byte, addr solana.PublicKey, record interface{}) error {
	raw, err := borsh.Serialize(record)
	if err != nil {
		return reject("encode %T record: %v", record, err)
	}
	staged[addr] = append([]byte{1}, raw...)
	return nil
}

func reject(format string, args ...interface{}) error {
	return &client.RejectionError{Reason: fmt.Sprintf(format, args...)}
}
