package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the API process reads from the environment.
type Config struct {
	Port        string
	Env         string
	AuthSecret  string
	PostgresDSN string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Production reports whether the process runs with production hardening enabled.
func (c *Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// BuildPostgresDSN returns MESA_PG_DSN when set, otherwise assembles a DSN
// from the individual MESA_PG_* parts.
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}
	if c.PostgresHost == "" {
		return "", errors.New("MESA_PG_HOST or MESA_PG_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("MESA_PG_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("MESA_PG_DATABASE must be set")
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresDB, c.PostgresSSLMode)
	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}
	return dsn, nil
}

// New reads configuration from the environment and validates it.
func New() (*Config, error) {
	c := &Config{
		Port:             getenv("MESA_PORT", "8080"),
		Env:              getenv("MESA_ENV", "development"),
		AuthSecret:       getenv("MESA_AUTH_SECRET", "change-me"),
		PostgresDSN:      getenv("MESA_PG_DSN", ""),
		PostgresHost:     getenv("MESA_PG_HOST", "localhost"),
		PostgresPort:     getenv("MESA_PG_PORT", "5432"),
		PostgresUser:     getenv("MESA_PG_USER", "mesa"),
		PostgresPassword: getenv("MESA_PG_PASSWORD", ""),
		PostgresDB:       getenv("MESA_PG_DATABASE", "mesa"),
		PostgresSSLMode:  getenv("MESA_PG_SSLMODE", "disable"),
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid MESA_PORT: %s", c.Port)
	}
	if c.Production() && (c.AuthSecret == "" || c.AuthSecret == "change-me") {
		return nil, errors.New("MESA_AUTH_SECRET must be set in production")
	}
	return c, nil
}
