package secrets

import (
	"testing"

	"github.com/kandriws/authcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex      = "6368616e676520746869732070617373776f726420746f206120736563726574" // 32 bytes
	otherTestKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

func newTestKeyStore(t *testing.T) *KeyStore {
	t.Helper()
	ks, err := NewKeyStore(map[string]string{
		"k1": testKeyHex,
		"k2": otherTestKeyHex,
	}, "k1")
	require.NoError(t, err)
	return ks
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encryptor := NewEncryptor(newTestKeyStore(t))

	ciphertext, metadata, err := encryptor.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Equal(t, "k1", metadata.KeyID)
	assert.Equal(t, AlgorithmAESGCM, metadata.Algorithm)
	assert.NotEmpty(t, metadata.Nonce)
	assert.NotEmpty(t, metadata.AuthTag)
	assert.NotEqual(t, "JBSWY3DPEHPK3PXP", ciphertext)

	plaintext, err := encryptor.Decrypt(ciphertext, metadata)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plaintext)
}

func TestDecryptWithRotatedCurrentKey(t *testing.T) {
	// Encrypt under k1, then decrypt through a store whose current key moved
	// to k2. The metadata key id keeps the old ciphertext readable.
	encryptor := NewEncryptor(newTestKeyStore(t))
	ciphertext, metadata, err := encryptor.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	rotated, err := NewKeyStore(map[string]string{
		"k1": testKeyHex,
		"k2": otherTestKeyHex,
	}, "k2")
	require.NoError(t, err)

	plaintext, err := NewEncryptor(rotated).Decrypt(ciphertext, metadata)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plaintext)
}

func TestDecryptUnknownKeyID(t *testing.T) {
	encryptor := NewEncryptor(newTestKeyStore(t))
	ciphertext, metadata, err := encryptor.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	metadata.KeyID = "k9"
	_, err = encryptor.Decrypt(ciphertext, metadata)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSecretKeyNotFound))
	assert.False(t, errors.IsCode(err, errors.ErrCodeInvalidSecret))
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	encryptor := NewEncryptor(newTestKeyStore(t))
	_, metadata, err := encryptor.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	_, err = encryptor.Decrypt("dGFtcGVyZWQ=", metadata)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSecret))
}

func TestDecryptWrongAlgorithm(t *testing.T) {
	encryptor := NewEncryptor(newTestKeyStore(t))
	ciphertext, metadata, err := encryptor.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	metadata.Algorithm = "aes-128-cbc"
	_, err = encryptor.Decrypt(ciphertext, metadata)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSecret))
}

func TestNewKeyStoreRejectsMalformedKeys(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]string
	}{
		{"short key", map[string]string{"k1": "abcdef"}},
		{"not hex", map[string]string{"k1": "zzzz"}},
		{"empty ring", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyStore(tt.keys, "k1")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSecret))
		})
	}
}

func TestNewKeyStoreRequiresCurrentKeyInRing(t *testing.T) {
	_, err := NewKeyStore(map[string]string{"k1": testKeyHex}, "k2")
	require.Error(t, err)
}
