// Package config holds the process configuration: a JSON5 file with env-var
// overlay, env taking precedence. Secrets (supervisor token, SMTP password,
// Postgres DSN) are expected to arrive via env in production.
package config

import (
	"time"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
)

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Supervisor SupervisorConfig `json:"supervisor"`
	Directory  DirectoryConfig  `json:"directory"`
	Mail       MailConfig       `json:"mail"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

// SupervisorConfig configures the upstream WebSocket link. A blank URL means
// standalone mode: no link is dialed and every message is handled locally.
type SupervisorConfig struct {
	URL               string `json:"url"`
	Token             string `json:"token"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	PingIntervalSec   int    `json:"ping_interval_sec"`
	BackoffBaseMs     int    `json:"backoff_base_ms"`
	MaxReconnects     int    `json:"max_reconnects"`
}

// RequestTimeout returns the configured per-request timeout.
func (s SupervisorConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// PingInterval returns the keepalive interval.
func (s SupervisorConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSec) * time.Second
}

// BackoffBase returns the first reconnect delay.
func (s SupervisorConfig) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseMs) * time.Millisecond
}

// DirectoryConfig selects the account-lookup backend.
type DirectoryConfig struct {
	Backend     string               `json:"backend"` // memory, sqlite, postgres
	SQLitePath  string               `json:"sqlite_path"`
	PostgresDSN string               `json:"postgres_dsn"`
	Users       []directory.Identity `json:"users"` // seeds for the memory backend
}

// MailConfig configures the outbound SMTP relay for email replies. A blank
// Addr falls back to the logging mailer.
type MailConfig struct {
	SMTPAddr string `json:"smtp_addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	Protocol    string `json:"protocol"` // "http" or "grpc"
	ServiceName string `json:"service_name"`
	Insecure    bool   `json:"insecure"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         18990,
			RateLimitRPM: 60,
		},
		Supervisor: SupervisorConfig{
			RequestTimeoutSec: 10,
			PingIntervalSec:   30,
			BackoffBaseMs:     1000,
			MaxReconnects:     5,
		},
		Directory: DirectoryConfig{
			Backend: "memory",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "switchboard",
		},
	}
}

// DirectoryOptions adapts the config into the directory backend options.
func (c *Config) DirectoryOptions() directory.Options {
	return directory.Options{
		Backend:     c.Directory.Backend,
		SQLitePath:  c.Directory.SQLitePath,
		PostgresDSN: c.Directory.PostgresDSN,
		Users:       c.Directory.Users,
	}
}
