package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/common"
)

// EncryptPayload serializes v as JSON and seals it with AES-256-GCM under dek.
// It returns the ciphertext and the random nonce used.
func EncryptPayload(v any, dek []byte) ([]byte, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	defer common.WipeByteArray(data)

	aead, err := payloadAEAD(dek)
	if err != nil {
		return nil, nil, err
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nil, nonce, data, nil), nonce, nil
}

// DecryptPayload opens ciphertext with dek and decodes the JSON into v.
// Authentication and decoding failures are both ErrDecrypt.
func DecryptPayload(ciphertext, nonce, dek []byte, v any) error {
	aead, err := payloadAEAD(dek)
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return ErrDecrypt
	}

	data, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrDecrypt
	}
	defer common.WipeByteArray(data)

	if err := json.Unmarshal(data, v); err != nil {
		return ErrDecrypt
	}
	return nil
}

func payloadAEAD(dek []byte) (cipher.AEAD, error) {
	if len(dek) != KeyLen {
		return nil, fmt.Errorf("data key must be %d bytes, got %d", KeyLen, len(dek))
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
