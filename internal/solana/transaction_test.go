package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func TestAppendCompactU16(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		if got := appendCompactU16(nil, tt.n); !bytes.Equal(got, tt.want) {
			t.Errorf("appendCompactU16(%#x) = %x, want %x", tt.n, got, tt.want)
		}
	}
}

func testKeypair(t *testing.T, b byte) Keypair {
	t.Helper()
	kp, err := NewKeypairFromSeed(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("NewKeypairFromSeed: %v", err)
	}
	return kp
}

func TestNewMessage_AccountOrder(t *testing.T) {
	payer := testKeypair(t, 1).PublicKey()
	signer := testKeypair(t, 2).PublicKey()
	writable := PublicKeyFromBytes(bytes.Repeat([]byte{3}, 32))
	readonly := PublicKeyFromBytes(bytes.Repeat([]byte{4}, 32))
	program := PublicKeyFromBytes(bytes.Repeat([]byte{5}, 32))

	ix := Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{PublicKey: readonly},
			{PublicKey: signer, IsSigner: true},
			{PublicKey: writable, IsWritable: true},
			{PublicKey: payer, IsSigner: true},
		},
		Data: []byte{1, 2},
	}

	msg, err := NewMessage(payer, []Instruction{ix}, Hash{})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	want := []PublicKey{payer, signer, writable, readonly, program}
	if len(msg.AccountKeys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(msg.AccountKeys))
	}
	for i := range want {
		if msg.AccountKeys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], msg.AccountKeys[i])
		}
	}

	if msg.Header.NumRequiredSignatures != 2 || msg.Header.NumReadonlySignedAccounts != 1 || msg.Header.NumReadonlyUnsignedAccounts != 2 {
		t.Errorf("unexpected header %+v", msg.Header)
	}

	compiled := msg.Instructions[0]
	if compiled.ProgramIDIndex != 4 {
		t.Errorf("expected program index 4, got %d", compiled.ProgramIDIndex)
	}
	if !bytes.Equal(compiled.Accounts, []uint8{3, 1, 2, 0}) {
		t.Errorf("unexpected account indexes %v", compiled.Accounts)
	}
}

func TestTransaction_SignAndSerialize(t *testing.T) {
	payer := testKeypair(t, 9)
	dest := PublicKeyFromBytes(bytes.Repeat([]byte{8}, 32))

	tx, err := NewTransaction(payer.PublicKey(), []Instruction{
		SetComputeUnitLimit(101337),
		SetComputeUnitPrice(421197),
		Transfer(payer.PublicKey(), dest, 1000),
	}, Hash{7})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if err := tx.Sign(payer); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	if raw[0] != 1 {
		t.Fatalf("expected 1 signature, got %d", raw[0])
	}

	msg, _ := tx.Message.MarshalBinary()
	if !bytes.Equal(raw[1+SignatureLength:], msg) {
		t.Error("message bytes must follow signatures")
	}

	sig := tx.Signature()
	if !ed25519.Verify(ed25519.PublicKey(payer.PublicKey().Bytes()), msg, sig[:]) {
		t.Error("signature does not verify")
	}
}

func TestTransaction_MissingSigner(t *testing.T) {
	payer := testKeypair(t, 1)
	other := testKeypair(t, 2)

	tx, err := NewTransaction(payer.PublicKey(), []Instruction{
		Transfer(other.PublicKey(), payer.PublicKey(), 1),
	}, Hash{})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	if err := tx.Sign(payer); !errors.Is(err, ErrMissingSigner) {
		t.Errorf("expected ErrMissingSigner, got %v", err)
	}
}

func TestTransaction_TooLarge(t *testing.T) {
	payer := testKeypair(t, 1)

	tx, err := NewTransaction(payer.PublicKey(), []Instruction{
		{ProgramID: SystemProgramID, Data: make([]byte, MaxTransactionSize)},
	}, Hash{})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Sign(payer)

	if _, err := tx.MarshalBinary(); err == nil {
		t.Error("expected size error")
	}
}

func TestParseKeypair(t *testing.T) {
	kp := testKeypair(t, 3)

	parsed, err := ParseKeypair(base58.Encode(kp.key))
	if err != nil {
		t.Fatalf("ParseKeypair base58: %v", err)
	}
	if parsed.PublicKey() != kp.PublicKey() {
		t.Error("base58 round trip changed key")
	}

	if _, err := ParseKeypair("[1,2,3]"); err == nil {
		t.Error("expected length error")
	}
}
