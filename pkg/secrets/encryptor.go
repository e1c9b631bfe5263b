package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/kandriws/authcore/pkg/errors"
)

const (
	// AlgorithmAESGCM identifies the only cipher this service produces.
	AlgorithmAESGCM = "aes-256-gcm"

	// ProviderLocal marks ciphertexts produced by the in-process key ring.
	ProviderLocal = "local"

	// metadataVersion is bumped when the metadata layout changes.
	metadataVersion = 1
)

// Metadata describes how a ciphertext was produced. The domain never interprets
// it beyond passing it back for decryption.
type Metadata struct {
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	Nonce     string `json:"nonce"`
	AuthTag   string `json:"auth_tag"`
	Version   int    `json:"version"`
	Provider  string `json:"provider"`
}

// Encryptor envelope-encrypts TOTP secrets with AES-256-GCM using keys
// resolved from a versioned KeyStore.
type Encryptor struct {
	keyStore *KeyStore
}

// NewEncryptor creates an Encryptor backed by the given key store
func NewEncryptor(keyStore *KeyStore) *Encryptor {
	return &Encryptor{keyStore: keyStore}
}

// Encrypt encrypts plaintext with the current key and returns the base64
// ciphertext body together with the metadata required to decrypt it later.
func (e *Encryptor) Encrypt(plaintext string) (string, Metadata, error) {
	if plaintext == "" {
		return "", Metadata{}, errors.New(errors.ErrCodeInvalidSecret, "plaintext cannot be empty")
	}

	keyID := e.keyStore.CurrentKeyID()
	key, err := e.keyStore.Key(keyID)
	if err != nil {
		return "", Metadata{}, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", Metadata{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", Metadata{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate nonce")
	}

	// Seal appends the auth tag to the ciphertext; split it into the
	// metadata so the stored body is ciphertext only.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagOffset := len(sealed) - gcm.Overhead()
	body, tag := sealed[:tagOffset], sealed[tagOffset:]

	metadata := Metadata{
		KeyID:     keyID,
		Algorithm: AlgorithmAESGCM,
		Nonce:     base64.StdEncoding.EncodeToString(nonce),
		AuthTag:   base64.StdEncoding.EncodeToString(tag),
		Version:   metadataVersion,
		Provider:  ProviderLocal,
	}

	return base64.StdEncoding.EncodeToString(body), metadata, nil
}

// Decrypt reverses Encrypt, resolving the key by the id recorded in metadata
// rather than assuming the current key.
func (e *Encryptor) Decrypt(ciphertext string, metadata Metadata) (string, error) {
	if ciphertext == "" {
		return "", errors.New(errors.ErrCodeInvalidSecret, "ciphertext cannot be empty")
	}
	if metadata.Algorithm != AlgorithmAESGCM {
		return "", errors.Newf(errors.ErrCodeInvalidSecret, "unsupported algorithm: %s", metadata.Algorithm)
	}

	key, err := e.keyStore.Key(metadata.KeyID)
	if err != nil {
		return "", err
	}

	body, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to decode ciphertext")
	}
	nonce, err := base64.StdEncoding.DecodeString(metadata.Nonce)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to decode nonce")
	}
	tag, err := base64.StdEncoding.DecodeString(metadata.AuthTag)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to decode auth tag")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", errors.New(errors.ErrCodeInvalidSecret, "invalid nonce length")
	}

	plaintext, err := gcm.Open(nil, nonce, append(body, tag...), nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to decrypt secret")
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidSecret, "failed to create GCM")
	}
	return gcm, nil
}
