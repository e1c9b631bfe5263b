package config

// EmailConfig holds SMTP configuration for outbound notifications
type EmailConfig struct {
	Host     string `env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME" env-default:""`
	Password string `env:"SMTP_PASSWORD" env-default:""`
	From     string `env:"SMTP_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"SMTP_TLS" env-default:"false"`
}
