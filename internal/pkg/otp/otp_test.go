package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c, err := NewCodec("pepper")
	require.NoError(t, err)

	digest := c.Hash("123456")
	assert.True(t, c.Compare("123456", digest))
	assert.False(t, c.Compare("123457", digest))
	assert.False(t, c.Compare("", digest))
}

func TestCodecSecretMatters(t *testing.T) {
	a, err := NewCodec("pepper-a")
	require.NoError(t, err)
	b, err := NewCodec("pepper-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash("123456"), b.Hash("123456"))
	assert.False(t, b.Compare("123456", a.Hash("123456")))
}

func TestCodecTruncatedHash(t *testing.T) {
	c, err := NewCodec("pepper")
	require.NoError(t, err)

	digest := c.Hash("123456")
	assert.False(t, c.Compare("123456", digest[:10]))
}

func TestNewCodecEmptySecret(t *testing.T) {
	_, err := NewCodec("")
	require.Error(t, err)
}
