package twofa

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

const (
	totpPeriod uint = 30
	totpSkew   uint = 1
)

// GenerateTotpSecret generates a fresh TOTP secret for the account and
// returns the secret together with its otpauth provisioning URI.
func GenerateTotpSecret(issuer, accountName string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "accountName", accountName, "issuer", issuer, "err", err)
		return "", "", autherr.InternalWrap(err, "failed to generate totp secret")
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTotpPasscode checks a passcode against the secret for the
// current time window, tolerating one step of clock skew.
func ValidateTotpPasscode(totpSecret, passcode string) (bool, error) {
	valid, err := totp.ValidateCustom(passcode, totpSecret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "err", err)
		return false, err
	}
	return valid, nil
}

// GenerateTotpPasscode computes the current passcode for a secret,
// used in tests and provisioning checks.
func GenerateTotpPasscode(totpSecret string) (string, error) {
	code, err := totp.GenerateCodeCustom(totpSecret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to generate totp passcode", "err", err)
		return "", err
	}
	return code, nil
}
