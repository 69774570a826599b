package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/switchboard/internal/directory"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; the defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	envStr("SWITCHBOARD_HOST", &c.Server.Host)
	envInt("SWITCHBOARD_PORT", &c.Server.Port)
	envInt("SWITCHBOARD_RATE_LIMIT_RPM", &c.Server.RateLimitRPM)

	envStr("SWITCHBOARD_SUPERVISOR_URL", &c.Supervisor.URL)
	envStr("SWITCHBOARD_SUPERVISOR_TOKEN", &c.Supervisor.Token)
	envInt("SWITCHBOARD_SUPERVISOR_TIMEOUT_SEC", &c.Supervisor.RequestTimeoutSec)
	envInt("SWITCHBOARD_SUPERVISOR_PING_SEC", &c.Supervisor.PingIntervalSec)
	envInt("SWITCHBOARD_SUPERVISOR_MAX_RECONNECTS", &c.Supervisor.MaxReconnects)

	envStr("SWITCHBOARD_DIRECTORY_BACKEND", &c.Directory.Backend)
	envStr("SWITCHBOARD_SQLITE_PATH", &c.Directory.SQLitePath)
	envStr("SWITCHBOARD_POSTGRES_DSN", &c.Directory.PostgresDSN)

	envStr("SWITCHBOARD_SMTP_ADDR", &c.Mail.SMTPAddr)
	envStr("SWITCHBOARD_SMTP_USERNAME", &c.Mail.Username)
	envStr("SWITCHBOARD_SMTP_PASSWORD", &c.Mail.Password)
	envStr("SWITCHBOARD_MAIL_FROM", &c.Mail.From)

	envStr("SWITCHBOARD_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("SWITCHBOARD_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("SWITCHBOARD_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("SWITCHBOARD_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SWITCHBOARD_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	// Quick single-user setup without a config file:
	// SWITCHBOARD_USER=ada,+15551230001,+15551230002,ada@example.com,boss@example.com
	if v := os.Getenv("SWITCHBOARD_USER"); v != "" {
		if u, ok := parseUserSpec(v); ok {
			c.Directory.Users = append(c.Directory.Users, u)
		}
	}
}

func parseUserSpec(spec string) (directory.Identity, bool) {
	parts := strings.Split(spec, ",")
	if len(parts) < 3 {
		return directory.Identity{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	u := directory.Identity{
		Username: parts[0],
		Name:     parts[0],
		Phone:    parts[1],
	}
	if len(parts) > 2 {
		u.BossPhone = parts[2]
	}
	if len(parts) > 3 {
		u.Email = parts[3]
	}
	if len(parts) > 4 {
		u.BossEmail = parts[4]
	}
	return u, true
}
