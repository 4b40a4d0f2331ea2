package client

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// fakeSender records the transaction it was asked to submit.
type fakeSender struct {
	blockhash    solana.Hash
	blockhashErr error
	sig          solana.Signature
	sendErr      error

	sent []*solana.Transaction
}

func (f *fakeSender) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, f.blockhashErr
}

func (f *fakeSender) SendAndConfirmTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sent = append(f.sent, tx)
	return f.sig, f.sendErr
}

// fakeReader serves accounts from a map.
type fakeReader struct {
	accounts map[solana.PublicKey][]byte
	err      error
}

func (f *fakeReader) Account(_ context.Context, address solana.PublicKey) ([]byte, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	data, ok := f.accounts[address]
	return data, ok, nil
}
