package config

import "fmt"

// DatabaseConfig holds PostgreSQL database configuration
// This is shared across all services to avoid duplication
type DatabaseConfig struct {
	Host     string `env:"AUTHCORE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"AUTHCORE_PG_PORT" env-default:"5432"`
	Database string `env:"AUTHCORE_PG_DATABASE" env-default:"authcore_db"`
	User     string `env:"AUTHCORE_PG_USER" env-default:"authcore"`
	Password string `env:"AUTHCORE_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"AUTHCORE_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}
