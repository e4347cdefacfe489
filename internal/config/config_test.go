package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: `+testSecret+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 12*time.Second, cfg.TxTimeout())
	assert.Equal(t, 60*time.Second, cfg.SlotCacheTTL())
	assert.Equal(t, 14, cfg.Booking.SlotHorizonDays)
	assert.Equal(t, 7, cfg.Booking.DisplayUTCOffsetHours)
	assert.Equal(t, "0 */15 * * * *", cfg.Scheduler.SweepOverdueRentals)
	assert.Equal(t, "0 0 1 * * *", cfg.Scheduler.GenerateFittingSlots)
	assert.Equal(t, 4, cfg.Notification.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "", cfg.GetGRPCAddress())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
  grpc_port: 9090
database:
  host: db
  user: onrent
  database: onrent
jwt:
  secret: `+testSecret+`
`)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("SERVER_PORT", "8181")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://onrent:@db.internal:6543/onrent?sslmode=disable", cfg.GetDatabaseConnectionString())
	assert.Equal(t, "0.0.0.0:8181", cfg.GetServerAddress())
	assert.Equal(t, "0.0.0.0:9090", cfg.GetGRPCAddress())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate_Errors(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: DriverMemory},
			JWT:      JWTConfig{Secret: testSecret},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "unknown database driver"},
		{"postgres without host", func(c *Config) { c.Database.Driver = DriverPostgres }, "database host is required"},
		{"short secret", func(c *Config) { c.JWT.Secret = "short" }, "at least 32 characters"},
		{"email without key", func(c *Config) { c.Notification.EmailEnabled = true }, "sendgrid api key"},
		{"push without credentials", func(c *Config) { c.Notification.PushEnabled = true }, "firebase credentials"},
		{"non-WIB offset", func(c *Config) { c.Booking.DisplayUTCOffsetHours = 8 }, "display utc offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("ListOpenSlots"))
	assert.Equal(t, SecurityOwner, GetSecurityLevel("GenerateSlots"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("BookFitting"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("SomethingNew"))
}
