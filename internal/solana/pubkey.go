package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an account address in bytes.
const PublicKeyLength = 32

// PDA derivation limits enforced by the runtime.
const (
	maxSeedLength = 32
	maxSeeds      = 16
)

// Well-known program and mint addresses.
var (
	SystemProgramID          = MustPublicKey("11111111111111111111111111111111")
	TokenProgramID           = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgramID   = MustPublicKey("ComputeBudget111111111111111111111111111111")
	MetaplexProgramID        = MustPublicKey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	WrappedSOLMint = MustPublicKey("So11111111111111111111111111111111111111112")
	USDCMint       = MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

var (
	// ErrInvalidPublicKey is returned when a string is not a 32-byte base58 address.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrOnCurve is returned when derived seeds land on the ed25519 curve.
	ErrOnCurve = errors.New("derived address is on curve")
)

// PublicKey is a Solana account address.
type PublicKey [PublicKeyLength]byte

// PublicKeyFromBase58 parses a base58 encoded address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidPublicKey, s, err)
	}
	if len(b) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("%w %q: length %d", ErrInvalidPublicKey, s, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey parses a base58 address and panics on failure.
// Only for compile-time constants.
func MustPublicKey(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies the first 32 bytes of b into a PublicKey.
func PublicKeyFromBytes(b []byte) PublicKey {
	var pk PublicKey
	copy(pk[:], b)
	return pk
}

// String returns the base58 encoding.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p PublicKey) Bytes() []byte {
	return append([]byte(nil), p[:]...)
}

// IsZero reports whether the key is all zeros.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	pk, err := PublicKeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// CreateProgramAddress derives a program address from seeds.
// Returns ErrOnCurve when the hash is a valid ed25519 point.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, fmt.Errorf("seed too long: %d", len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))

	hash := h.Sum(nil)
	if isOnCurve(hash) {
		return PublicKey{}, ErrOnCurve
	}
	return PublicKeyFromBytes(hash), nil
}

// FindProgramAddress searches bump seeds from 255 down for the first
// off-curve address.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}

	return PublicKey{}, 0, fmt.Errorf("no viable bump seed for program %s", programID)
}

// FindAssociatedTokenAddress returns the associated token account of owner for mint.
func FindAssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	if err != nil {
		return PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

// FindMetadataAddress returns the Metaplex metadata account for mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func FindMetadataAddress(mint PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), MetaplexProgramID[:], mint[:]}, MetaplexProgramID)
	if err != nil {
		return PublicKey{}, fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
