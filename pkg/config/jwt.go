package config

import "time"

// JWTConfig holds the signing configuration for every token type.
// Each type carries its own secret and expiry so one secret leaking
// never compromises the others.
type JWTConfig struct {
	AccessSecret        string `env:"JWT_ACCESS_SECRET" env-default:"very-secure-access-secret"`
	RefreshSecret       string `env:"JWT_REFRESH_SECRET" env-default:"very-secure-refresh-secret"`
	ResetPasswordSecret string `env:"JWT_RESET_PASSWORD_SECRET" env-default:"very-secure-reset-secret"`
	AccessTokenExpiry   string `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry  string `env:"REFRESH_TOKEN_EXPIRY" env-default:"24h"`
	ResetTokenExpiry    string `env:"RESET_TOKEN_EXPIRY" env-default:"1h"`
	Issuer              string `env:"JWT_ISSUER" env-default:"authcore"`
	Audience            string `env:"JWT_AUDIENCE" env-default:"authcore"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return time.ParseDuration(j.AccessTokenExpiry)
}

// ParseRefreshTokenExpiry parses the refresh token expiry duration
func (j JWTConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	return time.ParseDuration(j.RefreshTokenExpiry)
}

// ParseResetTokenExpiry parses the reset password token expiry duration
func (j JWTConfig) ParseResetTokenExpiry() (time.Duration, error) {
	return time.ParseDuration(j.ResetTokenExpiry)
}
