package config

import "time"

// OtpConfig holds one-time code policy: code length and per-channel TTLs.
type OtpConfig struct {
	CodeLength   int    `env:"OTP_CODE_LENGTH" env-default:"6"`
	EmailCodeTTL string `env:"OTP_EMAIL_CODE_TTL" env-default:"10m"`
	SmsCodeTTL   string `env:"OTP_SMS_CODE_TTL" env-default:"5m"`
}

// ParseEmailCodeTTL parses the email OTP time-to-live
func (c OtpConfig) ParseEmailCodeTTL() (time.Duration, error) {
	return time.ParseDuration(c.EmailCodeTTL)
}

// ParseSmsCodeTTL parses the SMS OTP time-to-live
func (c OtpConfig) ParseSmsCodeTTL() (time.Duration, error) {
	return time.ParseDuration(c.SmsCodeTTL)
}
