package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// Supported AEADs for wrapping the DEK.
const (
	WrapAESGCM            = "aes-256-gcm"
	WrapXChaCha20Poly1305 = "xchacha20-poly1305"
)

const wrapContext = "gophnotes/wrapped-dek/v1"

// WrappedDEK is the durable, server-storable form of a user's data key.
// Nothing in it can be opened without the passphrase-derived KEK.
type WrappedDEK struct {
	KDFSalt       []byte    `json:"kdf_salt"`
	WrappedKey    []byte    `json:"wrapped_key"`
	WrapNonce     []byte    `json:"wrap_nonce"`
	WrapAlgorithm string    `json:"wrap_algorithm"`
	KDFParams     KDFParams `json:"kdf_params"`
}

// associatedData binds the salt, the KDF parameters and the AEAD name into the
// ciphertext so that editing any of them breaks authentication.
func (w *WrappedDEK) associatedData() []byte {
	var b bytes.Buffer
	b.WriteString(wrapContext)
	for _, field := range [][]byte{[]byte(w.WrapAlgorithm), w.KDFParams.encode(), w.KDFSalt} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(field)))
		b.Write(n[:])
		b.Write(field)
	}
	return b.Bytes()
}

func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case WrapAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case WrapXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("unknown wrap algorithm %q", algorithm)
	}
}

// CreateWrappedDEK generates a fresh salt and DEK, derives the KEK with the
// default Argon2id parameters and wraps the DEK with AES-256-GCM.
//
// The caller persists the WrappedDEK, may cache the KEK, and uses the raw DEK
// right away.
func CreateWrappedDEK(passphrase []byte) (*KEK, *WrappedDEK, []byte, error) {
	return CreateWrappedDEKWith(passphrase, DefaultKDFParams(), WrapAESGCM)
}

// CreateWrappedDEKWith is CreateWrappedDEK with explicit KDF parameters and
// wrap algorithm.
func CreateWrappedDEKWith(passphrase []byte, params KDFParams, algorithm string) (*KEK, *WrappedDEK, []byte, error) {
	if len(passphrase) == 0 {
		return nil, nil, nil, ErrEmptyPassphrase
	}

	salt := common.GenerateRandByteArray(SaltLen)
	kek, err := DeriveKEK(passphrase, salt, params)
	if err != nil {
		return nil, nil, nil, err
	}

	dek := common.GenerateRandByteArray(KeyLen)
	wrapped, err := wrapWithKEK(kek, dek, salt, params, algorithm)
	if err != nil {
		kek.Wipe()
		return nil, nil, nil, err
	}
	return kek, wrapped, dek, nil
}

func wrapWithKEK(kek *KEK, dek, salt []byte, params KDFParams, algorithm string) (*WrappedDEK, error) {
	aead, err := newAEAD(algorithm, kek.key)
	if err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}

	w := &WrappedDEK{
		KDFSalt:       salt,
		WrapNonce:     common.GenerateRandByteArray(aead.NonceSize()),
		WrapAlgorithm: algorithm,
		KDFParams:     params,
	}
	w.WrappedKey = aead.Seal(nil, w.WrapNonce, dek, w.associatedData())
	return w, nil
}

// UnwrapDEK re-derives the KEK from passphrase and the stored salt and opens
// the DEK. Every failure, including malformed stored metadata, is ErrUnwrap.
func UnwrapDEK(passphrase []byte, wrapped *WrappedDEK) ([]byte, error) {
	if wrapped == nil {
		return nil, ErrUnwrap
	}
	kek, err := DeriveKEK(passphrase, wrapped.KDFSalt, wrapped.KDFParams)
	if err != nil {
		return nil, ErrUnwrap
	}
	defer kek.Wipe()
	return UnwrapDEKWithKEK(kek, wrapped)
}

// UnwrapDEKWithKEK opens the DEK with an already derived (usually cached)
// KEK. It fails exactly like UnwrapDEK.
func UnwrapDEKWithKEK(kek *KEK, wrapped *WrappedDEK) ([]byte, error) {
	if kek == nil || wrapped == nil {
		return nil, ErrUnwrap
	}
	aead, err := newAEAD(wrapped.WrapAlgorithm, kek.key)
	if err != nil {
		return nil, ErrUnwrap
	}
	if len(wrapped.WrapNonce) != aead.NonceSize() {
		return nil, ErrUnwrap
	}
	dek, err := aead.Open(nil, wrapped.WrapNonce, wrapped.WrappedKey, wrapped.associatedData())
	if err != nil {
		return nil, ErrUnwrap
	}
	return dek, nil
}

// RewrapDEK moves the DEK from oldPassphrase to newPassphrase under a fresh
// salt and nonce. The wrap algorithm is kept; KDF parameters are upgraded to
// the current defaults for that algorithm family.
//
// It returns the new KEK so the caller can refresh its cache.
func RewrapDEK(oldPassphrase, newPassphrase []byte, wrapped *WrappedDEK) (*KEK, *WrappedDEK, error) {
	if len(newPassphrase) == 0 {
		return nil, nil, ErrEmptyPassphrase
	}
	dek, err := UnwrapDEK(oldPassphrase, wrapped)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(dek)

	params := DefaultKDFParams()
	if wrapped.KDFParams.Algorithm == KDFScrypt {
		params = DefaultScryptParams()
	}

	salt := common.GenerateRandByteArray(SaltLen)
	kek, err := DeriveKEK(newPassphrase, salt, params)
	if err != nil {
		return nil, nil, err
	}
	next, err := wrapWithKEK(kek, dek, salt, params, wrapped.WrapAlgorithm)
	if err != nil {
		kek.Wipe()
		return nil, nil, err
	}
	return kek, next, nil
}
