package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// SignatureLength is the size of an ed25519 signature.
const SignatureLength = 64

// Signature is a transaction signature.
type Signature [SignatureLength]byte

// String returns the base58 encoding, which is also the transaction id.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether the signature is unset.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Keypair is an ed25519 signing key.
type Keypair struct {
	key ed25519.PrivateKey
}

// NewKeypairFromSeed builds a keypair from a 32-byte seed.
func NewKeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Keypair{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParseKeypair parses a 64-byte secret key given either as base58 or
// as a JSON byte array (the solana-keygen file format).
func ParseKeypair(s string) (Keypair, error) {
	s = strings.TrimSpace(s)

	var secret []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return Keypair{}, fmt.Errorf("parse secret key array: %w", err)
		}
		secret = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return Keypair{}, fmt.Errorf("secret key byte %d out of range: %d", i, v)
			}
			secret[i] = byte(v)
		}
	} else {
		b, err := base58.Decode(s)
		if err != nil {
			return Keypair{}, fmt.Errorf("decode secret key: %w", err)
		}
		secret = b
	}

	if len(secret) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}

	kp, err := NewKeypairFromSeed(secret[:ed25519.SeedSize])
	if err != nil {
		return Keypair{}, err
	}
	if !bytes.Equal(kp.key[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
		return Keypair{}, fmt.Errorf("secret key public half does not match seed")
	}
	return kp, nil
}

// PublicKey returns the address of the keypair.
func (k Keypair) PublicKey() PublicKey {
	return PublicKeyFromBytes(k.key[ed25519.SeedSize:])
}

// Sign signs message.
func (k Keypair) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.key, message))
	return sig
}
