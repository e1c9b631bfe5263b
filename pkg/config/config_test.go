package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoginThresholds(t *testing.T) {
	cfg := RateLimitConfig{LoginThresholds: "3:15m,6:30m,10:60m"}

	thresholds, err := cfg.ParseLoginThresholds()
	require.NoError(t, err)
	require.Len(t, thresholds, 3)
	assert.Equal(t, Threshold{Attempts: 3, Lock: 15 * time.Minute}, thresholds[0])
	assert.Equal(t, Threshold{Attempts: 6, Lock: 30 * time.Minute}, thresholds[1])
	assert.Equal(t, Threshold{Attempts: 10, Lock: time.Hour}, thresholds[2])
}

func TestParseLoginThresholdsRejectsBadLadders(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"missing lock", "3"},
		{"zero attempts", "0:15m"},
		{"bad duration", "3:soon"},
		{"not ascending", "6:30m,3:15m"},
		{"duplicate attempts", "3:15m,3:30m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RateLimitConfig{LoginThresholds: tt.value}
			_, err := cfg.ParseLoginThresholds()
			assert.Error(t, err)
		})
	}
}

func TestEncryptionConfigParseKeys(t *testing.T) {
	cfg := EncryptionConfig{
		Keys: "k1:6368616e676520746869732070617373776f726420746f206120736563726574," +
			"k2:746869732069732061207365636f6e64206b65792c20333220627974657321",
		CurrentKeyID: "k2",
	}

	keys, err := cfg.ParseKeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Contains(t, keys, "k1")
	assert.Contains(t, keys, "k2")
}

func TestEncryptionConfigParseKeysRejectsMalformedEntries(t *testing.T) {
	for _, value := range []string{"k1", "k1:", ":abcd", "k1:aa,k1:bb"} {
		cfg := EncryptionConfig{Keys: value}
		_, err := cfg.ParseKeys()
		assert.Error(t, err, "value %q", value)
	}
}

func TestOtpConfigTTLParsing(t *testing.T) {
	cfg := OtpConfig{CodeLength: 6, EmailCodeTTL: "10m", SmsCodeTTL: "5m"}

	emailTTL, err := cfg.ParseEmailCodeTTL()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, emailTTL)

	smsTTL, err := cfg.ParseSmsCodeTTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, smsTTL)
}
