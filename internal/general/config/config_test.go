package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv keeps the host environment from leaking into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_USER", "DATABASE_PASSWORD", "DATABASE_NAME",
		"RABBITMQ_HOST", "RABBITMQ_PORT", "RABBITMQ_USER", "RABBITMQ_PASSWORD", "RABBITMQ_ENABLED",
		"NATS_URL", "GTFSRT_VEHICLE_POSITIONS_URL", "JWT_SECRET", "BOARDING_API_URL",
	} {
		t.Setenv(k, "")
	}
	// godotenv.Load reads .env from the working directory
	t.Chdir(t.TempDir())
}

const minimal = `
database:
  user: boarding
  password: secret
  database: bus_boarding
`

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, 5000, cfg.Services.BoardingServicePort)
	assert.Equal(t, 5001, cfg.Services.TelemetryServicePort)
	assert.Equal(t, []string{"*"}, cfg.Services.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTTL)
	assert.NotEmpty(t, cfg.JWT.SecretKey, "a random secret is generated")
	assert.Equal(t, 10*time.Second, cfg.Tracking.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.Tracking.LoadingTimeout)
	assert.Equal(t, 2.0, cfg.Tracking.RadiusKM)
	assert.Equal(t, 3, cfg.Tracking.SubmitAttempts)
	assert.Equal(t, "http://localhost:5000", cfg.Tracking.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.GTFSRT.PollInterval)
}

func TestLoadExpandsAndOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PASS_FROM_ENV", "expanded")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadFromFile(writeConfig(t, `
database:
  user: boarding
  password: ${DB_PASS_FROM_ENV}
  database: bus_boarding
jwt:
  secret_key: in-file
  access_ttl: 30m
tracking:
  poll_interval: 7s
`))
	require.NoError(t, err)

	assert.Equal(t, "expanded", cfg.Database.Password)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.JWT.SecretKey)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*time.Second, cfg.Tracking.PollInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing user", "database:\n  password: x\n  database: y\n"},
		{"unknown key", minimal + "bogus: 1\n"},
		{"bad sslmode", minimal + "  sslmode: sometimes\n"},
		{"rabbit without credentials", minimal + "rabbitmq:\n  enabled: true\n"},
		{"poll too fast", minimal + "tracking:\n  poll_interval: 100ms\n"},
		{"bad feed url", minimal + "gtfsrt:\n  vehicle_positions_url: not a url\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
