package cryptox

import "errors"

var (
	// ErrKeyDerivation reports malformed KDF input: a salt that is too short or
	// parameters that are unknown or out of range. It is not retryable.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrUnwrap reports that a wrapped data key could not be opened. Wrong
	// passphrase, tampered ciphertext and corrupted metadata are deliberately
	// indistinguishable.
	ErrUnwrap = errors.New("cannot unwrap data key")

	// ErrDecrypt reports that a note payload failed authentication or decoding.
	ErrDecrypt = errors.New("cannot decrypt payload")

	// ErrEmptyPassphrase is returned when creating or rotating a vault with an
	// empty passphrase.
	ErrEmptyPassphrase = errors.New("empty passphrase")

	// ErrKEKNotSerializable is returned by KEK.MarshalJSON.
	ErrKEKNotSerializable = errors.New("key-encryption key cannot be serialized")
)
