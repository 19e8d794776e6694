package cryptox

import (
	"testing"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func TestPayload_RoundTrip(t *testing.T) {
	dek := common.GenerateRandByteArray(KeyLen)
	in := samplePayload{Title: "groceries", Body: "milk, eggs"}

	ct, nonce, err := EncryptPayload(in, dek)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.NotContains(t, string(ct), "groceries")

	var out samplePayload
	require.NoError(t, DecryptPayload(ct, nonce, dek, &out))
	assert.Equal(t, in, out)
}

func TestPayload_Failures(t *testing.T) {
	dek := common.GenerateRandByteArray(KeyLen)
	ct, nonce, err := EncryptPayload(samplePayload{Title: "x"}, dek)
	require.NoError(t, err)

	var out samplePayload
	assert.ErrorIs(t, DecryptPayload(flip(ct), nonce, dek, &out), ErrDecrypt)
	assert.ErrorIs(t, DecryptPayload(ct, flip(nonce), dek, &out), ErrDecrypt)
	assert.ErrorIs(t, DecryptPayload(ct, nonce[:5], dek, &out), ErrDecrypt)
	assert.ErrorIs(t, DecryptPayload(ct, nonce, common.GenerateRandByteArray(KeyLen), &out), ErrDecrypt)

	assert.Error(t, DecryptPayload(ct, nonce, dek[:16], &out))
	_, _, err = EncryptPayload(samplePayload{}, []byte("short"))
	assert.Error(t, err)
	_, _, err = EncryptPayload(make(chan int), dek)
	assert.Error(t, err)
}
