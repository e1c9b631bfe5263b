package config

import (
	"fmt"
	"strings"
)

// EncryptionConfig holds the versioned key ring used to envelope-encrypt
// TOTP secrets. Keys are hex-encoded 32-byte values; CurrentKeyID selects
// the key used for new encryptions, older keys stay resolvable for decrypt.
type EncryptionConfig struct {
	// Keys is a comma-separated "keyId:hex" ring, e.g. "k1:<64 hex chars>,k2:<64 hex chars>".
	Keys         string `env:"ENCRYPTION_KEYS" env-default:""`
	CurrentKeyID string `env:"ENCRYPTION_CURRENT_KEY_ID" env-default:"k1"`
}

// ParseKeys parses the key ring into a keyId -> hex key map.
func (c EncryptionConfig) ParseKeys() (map[string]string, error) {
	keys := make(map[string]string)
	if strings.TrimSpace(c.Keys) == "" {
		return keys, nil
	}

	for _, part := range strings.Split(c.Keys, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 || pair[0] == "" || pair[1] == "" {
			return nil, fmt.Errorf("invalid encryption key entry: %q", part)
		}
		if _, exists := keys[pair[0]]; exists {
			return nil, fmt.Errorf("duplicate encryption key id: %s", pair[0])
		}
		keys[pair[0]] = pair[1]
	}
	return keys, nil
}
