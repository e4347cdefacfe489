package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	Notification NotificationConfig `yaml:"notification"`
	Booking      BookingConfig      `yaml:"booking"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	GRPCPort           int      `yaml:"grpc_port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Driver           string `yaml:"driver"` // "postgres" or "memory"
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	SSLMode          string `yaml:"ssl_mode"`
	TxTimeoutSeconds int    `yaml:"tx_timeout_seconds"`
	MaxOpenConns     int    `yaml:"max_open_conns"`
	MigrationsDir    string `yaml:"migrations_dir"`
	SeedFile         string `yaml:"seed_file"` // memory driver only
}

// RedisConfig contains the open-slot cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr                string `yaml:"addr"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	SlotCacheTTLSeconds int    `yaml:"slot_cache_ttl_seconds"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// NotificationConfig contains delivery channel settings
type NotificationConfig struct {
	EmailEnabled            bool   `yaml:"email_enabled"`
	SendGridAPIKey          string `yaml:"sendgrid_api_key"`
	FromEmail               string `yaml:"from_email"`
	FromName                string `yaml:"from_name"`
	PushEnabled             bool   `yaml:"push_enabled"`
	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`
	Workers                 int    `yaml:"workers"`
	QueueSize               int    `yaml:"queue_size"`
	MaxRetries              int    `yaml:"max_retries"`
}

// BookingConfig contains availability engine settings
type BookingConfig struct {
	DisplayUTCOffsetHours int `yaml:"display_utc_offset_hours"`
	SlotHorizonDays       int `yaml:"slot_horizon_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings (with seconds field)
type SchedulerConfig struct {
	SweepOverdueRentals  string `yaml:"sweep_overdue_rentals"`
	GenerateFittingSlots string `yaml:"generate_fitting_slots"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Notification
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Notification.SendGridAPIKey = val
	}
	if val := os.Getenv("FIREBASE_CREDENTIALS_FILE"); val != "" {
		c.Notification.FirebaseCredentialsFile = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		c.Server.CORSAllowedOrigins = strings.Split(val, ",")
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	if c.Database.TxTimeoutSeconds <= 0 {
		c.Database.TxTimeoutSeconds = 12
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 20
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Notification validation
	if c.Notification.EmailEnabled && (c.Notification.SendGridAPIKey == "" || c.Notification.FromEmail == "") {
		return fmt.Errorf("sendgrid api key and from email are required when email is enabled")
	}
	if c.Notification.PushEnabled && c.Notification.FirebaseCredentialsFile == "" {
		return fmt.Errorf("firebase credentials file is required when push is enabled")
	}
	if c.Notification.Workers <= 0 {
		c.Notification.Workers = 4
	}
	if c.Notification.QueueSize <= 0 {
		c.Notification.QueueSize = 256
	}
	if c.Notification.MaxRetries < 0 {
		return fmt.Errorf("notification max retries must not be negative")
	}

	// Booking: display times are always WIB.
	if c.Booking.DisplayUTCOffsetHours == 0 {
		c.Booking.DisplayUTCOffsetHours = 7
	}
	if c.Booking.DisplayUTCOffsetHours != 7 {
		return fmt.Errorf("display utc offset must be 7 (WIB), got %d", c.Booking.DisplayUTCOffsetHours)
	}
	if c.Booking.SlotHorizonDays <= 0 {
		c.Booking.SlotHorizonDays = 14
	}

	if c.Redis.SlotCacheTTLSeconds <= 0 {
		c.Redis.SlotCacheTTLSeconds = 60
	}

	// Scheduler defaults
	if c.Scheduler.SweepOverdueRentals == "" {
		c.Scheduler.SweepOverdueRentals = "0 */15 * * * *" // Every 15 minutes
	}
	if c.Scheduler.GenerateFittingSlots == "" {
		c.Scheduler.GenerateFittingSlots = "0 0 1 * * *" // 1 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health server address, or "" when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Database.TxTimeoutSeconds) * time.Second
}

func (c *Config) SlotCacheTTL() time.Duration {
	return time.Duration(c.Redis.SlotCacheTTLSeconds) * time.Second
}
