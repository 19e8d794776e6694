// Package cryptox implements the client-side key hierarchy: a passphrase is
// stretched into a key-encryption key (KEK), the KEK wraps a random data
// encryption key (DEK), and the DEK encrypts note payloads.
//
// The server only ever receives WrappedDEK records, login verifiers and
// ciphertext.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// Supported key-derivation algorithms.
const (
	KDFArgon2id = "argon2id"
	KDFScrypt   = "scrypt"
)

const (
	// KeyLen is the length of every KEK and DEK in bytes.
	KeyLen = 32
	// SaltLen is the length of freshly generated KDF salts.
	SaltLen = 32
	// MinSaltLen is the shortest salt DeriveKEK accepts.
	MinSaltLen = 16

	verifierContext = "gophnotes/login-verifier/v1"
)

// KDFParams records the derivation algorithm and its cost so that stored
// records stay readable after defaults change.
type KDFParams struct {
	Algorithm string `json:"algorithm"`
	KeyLen    uint32 `json:"key_len"`

	// argon2id
	Time      uint32 `json:"time,omitempty"`
	MemoryKiB uint32 `json:"memory_kib,omitempty"`
	Threads   uint8  `json:"threads,omitempty"`

	// scrypt
	N int `json:"scrypt_n,omitempty"`
	R int `json:"scrypt_r,omitempty"`
	P int `json:"scrypt_p,omitempty"`
}

// DefaultKDFParams returns Argon2id with time=1, memory=64 MiB, threads=4.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm: KDFArgon2id,
		KeyLen:    KeyLen,
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

// DefaultScryptParams returns scrypt with N=2^15, r=8, p=1.
func DefaultScryptParams() KDFParams {
	return KDFParams{
		Algorithm: KDFScrypt,
		KeyLen:    KeyLen,
		N:         1 << 15,
		R:         8,
		P:         1,
	}
}

// KDFLimits bounds the cost parameters accepted for derivation. Parameters
// arrive from the server and from stored records, so both a floor and a
// ceiling apply.
type KDFLimits struct {
	MinArgon2MemoryKiB uint32
	MaxArgon2MemoryKiB uint32
	MinArgon2Time      uint32
	MaxArgon2Time      uint32
	MaxArgon2Threads   uint8

	MinScryptN int
	MaxScryptN int
	MinScryptR int
	MaxScryptR int
	MaxScryptP int
}

// Cost floors and ceilings of DefaultKDFLimits.
const (
	MinArgon2MemoryKiB = 19 * 1024
	MaxArgon2MemoryKiB = 2 * 1024 * 1024
	MaxArgon2Time      = 10
	MaxArgon2Threads   = 16

	MinScryptN = 1 << 14
	MaxScryptN = 1 << 20
	MinScryptR = 8
	MaxScryptR = 32
	MaxScryptP = 16
)

// DefaultKDFLimits returns the limits enforced by Validate.
func DefaultKDFLimits() KDFLimits {
	return KDFLimits{
		MinArgon2MemoryKiB: MinArgon2MemoryKiB,
		MaxArgon2MemoryKiB: MaxArgon2MemoryKiB,
		MinArgon2Time:      1,
		MaxArgon2Time:      MaxArgon2Time,
		MaxArgon2Threads:   MaxArgon2Threads,
		MinScryptN:         MinScryptN,
		MaxScryptN:         MaxScryptN,
		MinScryptR:         MinScryptR,
		MaxScryptR:         MaxScryptR,
		MaxScryptP:         MaxScryptP,
	}
}

// kdfLimits is what Validate checks against.
var kdfLimits = DefaultKDFLimits()

// Validate reports whether p can be used for derivation. Costs outside
// DefaultKDFLimits are rejected so that neither a weakened verifier nor an
// unbounded allocation can be forced on the client.
func (p KDFParams) Validate() error {
	return p.ValidateWithin(kdfLimits)
}

// ValidateWithin is Validate against explicit limits.
func (p KDFParams) ValidateWithin(l KDFLimits) error {
	if p.KeyLen != KeyLen {
		return fmt.Errorf("%w: key length must be %d, got %d", ErrKeyDerivation, KeyLen, p.KeyLen)
	}
	switch p.Algorithm {
	case KDFArgon2id:
		if p.Time < l.MinArgon2Time || p.Time > l.MaxArgon2Time {
			return fmt.Errorf("%w: argon2id time must be in [%d, %d], got %d", ErrKeyDerivation, l.MinArgon2Time, l.MaxArgon2Time, p.Time)
		}
		if p.Threads < 1 || p.Threads > l.MaxArgon2Threads {
			return fmt.Errorf("%w: argon2id threads must be in [1, %d], got %d", ErrKeyDerivation, l.MaxArgon2Threads, p.Threads)
		}
		if p.MemoryKiB < l.MinArgon2MemoryKiB || p.MemoryKiB > l.MaxArgon2MemoryKiB {
			return fmt.Errorf("%w: argon2id memory must be in [%d, %d] KiB, got %d", ErrKeyDerivation, l.MinArgon2MemoryKiB, l.MaxArgon2MemoryKiB, p.MemoryKiB)
		}
		if p.MemoryKiB < 8*uint32(p.Threads) {
			return fmt.Errorf("%w: argon2id memory must be at least 8 KiB per thread", ErrKeyDerivation)
		}
	case KDFScrypt:
		if p.N <= 1 || p.N&(p.N-1) != 0 {
			return fmt.Errorf("%w: scrypt N must be a power of two greater than 1", ErrKeyDerivation)
		}
		if p.N < l.MinScryptN || p.N > l.MaxScryptN {
			return fmt.Errorf("%w: scrypt N must be in [%d, %d], got %d", ErrKeyDerivation, l.MinScryptN, l.MaxScryptN, p.N)
		}
		if p.R < l.MinScryptR || p.R > l.MaxScryptR || p.P < 1 || p.P > l.MaxScryptP {
			return fmt.Errorf("%w: scrypt r and p out of range", ErrKeyDerivation)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrKeyDerivation, p.Algorithm)
	}
	return nil
}

// encode is the canonical form of p bound into the wrap associated data.
func (p KDFParams) encode() []byte {
	return fmt.Appendf(nil, "%s;l=%d;t=%d;m=%d;th=%d;n=%d;r=%d;p=%d",
		p.Algorithm, p.KeyLen, p.Time, p.MemoryKiB, p.Threads, p.N, p.R, p.P)
}

// KEK is a key-encryption key derived from a passphrase. The key material is
// unexported and cannot be printed or serialized.
type KEK struct {
	key []byte
}

// DeriveKEK stretches passphrase with kdfSalt using params. It is
// deterministic for identical inputs and deliberately slow.
func DeriveKEK(passphrase, kdfSalt []byte, params KDFParams) (*KEK, error) {
	if len(kdfSalt) < MinSaltLen {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes, got %d", ErrKeyDerivation, MinSaltLen, len(kdfSalt))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, kdfSalt, params)
	if err != nil {
		return nil, err
	}
	return &KEK{key: key}, nil
}

func deriveKey(passphrase, salt []byte, p KDFParams) ([]byte, error) {
	switch p.Algorithm {
	case KDFArgon2id:
		return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen), nil
	case KDFScrypt:
		key, err := scrypt.Key(passphrase, salt, p.N, p.R, p.P, int(p.KeyLen))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrKeyDerivation, p.Algorithm)
	}
}

// Verifier returns a one-way login verifier for this KEK. The server stores
// it and compares candidates in constant time; it cannot be turned back into
// the KEK.
func (k *KEK) Verifier() []byte {
	h := sha256.New()
	h.Write([]byte(verifierContext))
	h.Write(k.key)
	return h.Sum(nil)
}

// Equal reports whether two KEKs hold the same key, in constant time.
func (k *KEK) Equal(other *KEK) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k.key, other.key) == 1
}

// Clone returns an independent copy of k. The caller owns the copy and
// should wipe it.
func (k *KEK) Clone() *KEK {
	if k == nil {
		return nil
	}
	return &KEK{key: append([]byte(nil), k.key...)}
}

// Wipe zeroes the key material. A wiped KEK fails every unwrap.
func (k *KEK) Wipe() {
	if k == nil {
		return
	}
	common.WipeByteArray(k.key)
	k.key = nil
}

// String and GoString are defined on the value so that neither KEK nor *KEK
// print key bytes through fmt.
func (k KEK) String() string   { return "KEK(redacted)" }
func (k KEK) GoString() string { return "cryptox.KEK{redacted}" }

// MarshalJSON always fails so a KEK never ends up in a persisted document.
func (k KEK) MarshalJSON() ([]byte, error) {
	return nil, ErrKEKNotSerializable
}
