package solana

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// MaxTransactionSize is the maximum serialized size of a transaction packet.
const MaxTransactionSize = 1232

// ErrMissingSigner is returned when a required signature has no matching keypair.
var ErrMissingSigner = errors.New("missing signer")

// Hash is a 32-byte blockhash.
type Hash [32]byte

// HashFromBase58 parses a base58 blockhash.
func HashFromBase58(s string) (Hash, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("decode hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("hash %q: length %d", s, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// String returns the base58 encoding.
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// MessageHeader counts signer and read-only accounts.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references accounts by index into Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// NewMessage compiles instructions into a legacy message with payer as the
// fee payer. Account order: writable signers, read-only signers, writable
// non-signers, read-only non-signers; first appearance order within a group.
func NewMessage(payer PublicKey, instructions []Instruction, blockhash Hash) (*Message, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions")
	}

	type entry struct {
		key      PublicKey
		signer   bool
		writable bool
	}
	var order []*entry
	index := make(map[PublicKey]*entry)

	add := func(key PublicKey, signer, writable bool) {
		if e, ok := index[key]; ok {
			e.signer = e.signer || signer
			e.writable = e.writable || writable
			return
		}
		e := &entry{key: key, signer: signer, writable: writable}
		index[key] = e
		order = append(order, e)
	}

	add(payer, true, true)
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta.PublicKey, meta.IsSigner, meta.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	if len(order) > 256 {
		return nil, fmt.Errorf("too many accounts: %d", len(order))
	}

	groups := [4][]*entry{}
	for _, e := range order {
		switch {
		case e.signer && e.writable:
			groups[0] = append(groups[0], e)
		case e.signer:
			groups[1] = append(groups[1], e)
		case e.writable:
			groups[2] = append(groups[2], e)
		default:
			groups[3] = append(groups[3], e)
		}
	}

	msg := &Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(groups[0]) + len(groups[1])),
			NumReadonlySignedAccounts:   uint8(len(groups[1])),
			NumReadonlyUnsignedAccounts: uint8(len(groups[3])),
		},
		RecentBlockhash: blockhash,
	}

	position := make(map[PublicKey]uint8, len(order))
	for _, group := range groups {
		for _, e := range group {
			position[e.key] = uint8(len(msg.AccountKeys))
			msg.AccountKeys = append(msg.AccountKeys, e.key)
		}
	}

	for _, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIDIndex: position[ix.ProgramID],
			Accounts:       make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}
		for i, meta := range ix.Accounts {
			compiled.Accounts[i] = position[meta.PublicKey]
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}

	return msg, nil
}

// MarshalBinary serializes the message in wire format.
func (m *Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	buf.Write(appendCompactU16(nil, len(m.AccountKeys)))
	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}
	buf.Write(m.RecentBlockhash[:])

	buf.Write(appendCompactU16(nil, len(m.Instructions)))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		buf.Write(appendCompactU16(nil, len(ix.Accounts)))
		buf.Write(ix.Accounts)
		buf.Write(appendCompactU16(nil, len(ix.Data)))
		buf.Write(ix.Data)
	}

	return buf.Bytes(), nil
}

// Transaction is a signed legacy transaction.
type Transaction struct {
	Signatures []Signature
	Message    *Message
}

// NewTransaction compiles instructions into an unsigned transaction.
func NewTransaction(payer PublicKey, instructions []Instruction, blockhash Hash) (*Transaction, error) {
	msg, err := NewMessage(payer, instructions, blockhash)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}, nil
}

// Sign fills every required signature slot from signers.
func (tx *Transaction) Sign(signers ...Keypair) error {
	data, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	byKey := make(map[PublicKey]Keypair, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}

	for i := 0; i < int(tx.Message.Header.NumRequiredSignatures); i++ {
		key := tx.Message.AccountKeys[i]
		signer, ok := byKey[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		tx.Signatures[i] = signer.Sign(data)
	}
	return nil
}

// Signature returns the fee payer signature, which identifies the transaction.
func (tx *Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// MarshalBinary serializes signatures followed by the message.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := appendCompactU16(nil, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		out = append(out, sig[:]...)
	}
	out = append(out, msg...)

	if len(out) > MaxTransactionSize {
		return nil, fmt.Errorf("transaction too large: %d > %d bytes", len(out), MaxTransactionSize)
	}
	return out, nil
}

// Base64 returns the serialized transaction as base64.
func (tx *Transaction) Base64() (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Base58 returns the serialized transaction as base58.
func (tx *Transaction) Base58() (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// appendCompactU16 appends n in the shortvec encoding.
func appendCompactU16(b []byte, n int) []byte {
	for {
		elem := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}
