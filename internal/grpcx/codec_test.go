package grpcx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())

	type msg struct {
		A string `json:"a"`
		B []byte `json:"b"`
	}
	data, err := c.Marshal(&msg{A: "x", B: []byte{1, 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":"AQI="}`, string(data))

	var out msg
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, msg{A: "x", B: []byte{1, 2}}, out)
}
