package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	c, err := NewCodec("test-secret")
	require.NoError(t, err)

	payload, err := c.Encode("3f6c1c1e-7a4e-4c55-9d59-1b0d7c1f0a11")
	require.NoError(t, err)
	assert.NotContains(t, payload, "3f6c1c1e")

	id, err := c.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "3f6c1c1e-7a4e-4c55-9d59-1b0d7c1f0a11", id)

	other, err := c.Encode("3f6c1c1e-7a4e-4c55-9d59-1b0d7c1f0a11")
	require.NoError(t, err)
	assert.NotEqual(t, payload, other, "nonce must differ per payload")
}

func TestCodec_RejectsTampering(t *testing.T) {
	c, err := NewCodec("test-secret")
	require.NoError(t, err)
	payload, err := c.Encode("ticket-1")
	require.NoError(t, err)

	flipped := []byte(payload)
	if flipped[len(flipped)-1] == 'A' {
		flipped[len(flipped)-1] = 'B'
	} else {
		flipped[len(flipped)-1] = 'A'
	}

	for _, bad := range []string{string(flipped), "", "not base64!!", "AAAA", "ticket-1"} {
		_, err := c.Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidPayload, "payload %q", bad)
	}

	otherKey, err := NewCodec("another-secret")
	require.NoError(t, err)
	_, err = otherKey.Decode(payload)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("")
	assert.Error(t, err)
}

func TestPNG_Renders(t *testing.T) {
	img, err := PNG("payload", 128)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())
}
