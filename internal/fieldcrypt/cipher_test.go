package fieldcrypt

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{0x42}, KeySize)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testKey)
	require.NoError(t, err)
	return c
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []byte
		wantErr bool
	}{
		{name: "base64", raw: base64.StdEncoding.EncodeToString(testKey), want: testKey},
		{name: "hex", raw: hex.EncodeToString(testKey), want: testKey},
		{name: "raw utf8", raw: "0123456789abcdef0123456789abcdef", want: []byte("0123456789abcdef0123456789abcdef")},
		{name: "base64 with trailing newline", raw: base64.StdEncoding.EncodeToString(testKey) + "\n", want: testKey},
		{name: "raw with significant spaces", raw: " 0123456789abcdef0123456789abcd ", want: []byte(" 0123456789abcdef0123456789abcd ")},
		{name: "padded raw is a different length", raw: " 0123456789abcdef0123456789abcdef ", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "too short", raw: "short", wantErr: true},
		{name: "base64 of 16 bytes", raw: base64.StdEncoding.EncodeToString(make([]byte, 16)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsWrongKeyLength(t *testing.T) {
	_, err := New(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)
	for _, s := range []string{"a", "alice@example.com", "Ünïcødé ✓", string(bytes.Repeat([]byte("x"), 4096))} {
		enc, err := c.Encrypt(s)
		require.NoError(t, err)
		assert.NotEqual(t, s, enc)

		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c := newTestCipher(t)
	a, err := c.Encrypt("same input")
	require.NoError(t, err)
	b, err := c.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	rawA, _ := base64.StdEncoding.DecodeString(a)
	rawB, _ := base64.StdEncoding.DecodeString(b)
	assert.NotEqual(t, rawA[:ivSize], rawB[:ivSize])
}

func TestEncrypt_Layout(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("hello")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	assert.Len(t, raw, ivSize+tagSize+len("hello"))
}

func TestEmptyPassesThrough(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", enc)

	dec, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", dec)
}

func TestDecrypt_DetectsTamperingOnEveryByte(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("patient record")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)

	for i := range raw {
		flipped := bytes.Clone(raw)
		flipped[i] ^= 0x01
		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(flipped))
		if !errors.Is(err, ErrTamperOrKeyMismatch) {
			t.Fatalf("byte %d: expected ErrTamperOrKeyMismatch, got %v", i, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("secret")
	require.NoError(t, err)

	other, err := New(bytes.Repeat([]byte{0x07}, KeySize))
	require.NoError(t, err)
	_, err = other.Decrypt(enc)
	assert.ErrorIs(t, err, ErrTamperOrKeyMismatch)
}

func TestDecrypt_MalformedInput(t *testing.T) {
	c := newTestCipher(t)
	for _, in := range []string{"not base64!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Decrypt(in)
		assert.ErrorIs(t, err, ErrTamperOrKeyMismatch, in)
	}
}
