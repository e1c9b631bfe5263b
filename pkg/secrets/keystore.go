package secrets

import (
	"crypto/aes"
	"encoding/hex"
	"fmt"

	"github.com/kandriws/authcore/pkg/errors"
)

// KeyStore resolves versioned encryption keys by id. New encryptions use the
// current key; decryption looks keys up by the id recorded in the ciphertext
// metadata so key rotation never invalidates previously encrypted secrets.
type KeyStore struct {
	keys         map[string][]byte
	currentKeyID string
}

// NewKeyStore builds a key store from hex-encoded key material. Every key must
// decode to exactly the AES-256 key size; anything else fails fast instead of
// being silently truncated or padded.
func NewKeyStore(hexKeys map[string]string, currentKeyID string) (*KeyStore, error) {
	if len(hexKeys) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSecret, "encryption key ring cannot be empty")
	}

	keys := make(map[string][]byte, len(hexKeys))
	for id, hexKey := range hexKeys {
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidSecret, "encryption key %s is not valid hex", id)
		}
		if len(raw) != 2*aes.BlockSize {
			return nil, errors.Newf(errors.ErrCodeInvalidSecret,
				"encryption key %s must be %d bytes, got %d", id, 2*aes.BlockSize, len(raw))
		}
		keys[id] = raw
	}

	if _, ok := keys[currentKeyID]; !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidSecret, "current key id %s is not in the key ring", currentKeyID)
	}

	return &KeyStore{keys: keys, currentKeyID: currentKeyID}, nil
}

// Key resolves raw key bytes by id. A missing id is reported distinctly from
// malformed key material so operators can tell "key rotated away" from
// "corrupted config".
func (ks *KeyStore) Key(keyID string) ([]byte, error) {
	key, ok := ks.keys[keyID]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSecretKeyNotFound, "encryption key not found: %s", keyID)
	}
	return key, nil
}

// CurrentKeyID returns the id of the key used for new encryptions
func (ks *KeyStore) CurrentKeyID() string {
	return ks.currentKeyID
}

// KeyIDs lists the ids present in the ring, useful for startup logging
func (ks *KeyStore) KeyIDs() []string {
	ids := make([]string, 0, len(ks.keys))
	for id := range ks.keys {
		ids = append(ids, id)
	}
	return ids
}

// GenerateHexKey is a convenience for operators creating new ring entries.
func GenerateHexKey(raw []byte) (string, error) {
	if len(raw) != 2*aes.BlockSize {
		return "", fmt.Errorf("key must be %d bytes, got %d", 2*aes.BlockSize, len(raw))
	}
	return hex.EncodeToString(raw), nil
}
