package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Provision     ProvisionConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the control-plane database configuration.
// The home registry lives here, in the homegrid_admin schema.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ProvisionConfig holds tenant schema provisioning configuration.
// Engine selects the database engine strategy once at startup; nothing
// else in the codebase branches on this string.
type ProvisionConfig struct {
	Engine         string // postgres, sqlserver
	Host           string
	Port           string
	AdminUser      string
	AdminPassword  string
	Database       string
	SSLMode        string
	PasswordSuffix string // appended to the schema name to derive the schema login password
}

// StorageConfig holds tenant object-storage configuration
type StorageConfig struct {
	Enabled     bool
	AccountName string
	AccountKey  string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AdminTokenSecret  string
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "homegrid"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "homegrid"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Provision: ProvisionConfig{
			Engine:         getEnv("PROVISION_ENGINE", "postgres"),
			Host:           getEnv("PROVISION_DB_HOST", getEnv("DB_HOST", "localhost")),
			Port:           getEnv("PROVISION_DB_PORT", getEnv("DB_PORT", "5432")),
			AdminUser:      getEnv("PROVISION_ADMIN_USER", getEnv("DB_USER", "homegrid")),
			AdminPassword:  getEnv("PROVISION_ADMIN_PASSWORD", getEnv("DB_PASSWORD", "")),
			Database:       getEnv("PROVISION_DB_NAME", getEnv("DB_NAME", "homegrid")),
			SSLMode:        getEnv("PROVISION_DB_SSLMODE", getEnv("DB_SSLMODE", "disable")),
			PasswordSuffix: getEnv("PROVISION_PASSWORD_SUFFIX", "#Hg2024!"),
		},
		Storage: StorageConfig{
			Enabled:     parseBool("STORAGE_ENABLED", false),
			AccountName: getEnv("STORAGE_ACCOUNT_NAME", ""),
			AccountKey:  getEnv("STORAGE_ACCOUNT_KEY", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "homegrid"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			AdminTokenSecret:  getEnv("ADMIN_TOKEN_SECRET", ""),
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Security.AdminTokenSecret == "" {
		return fmt.Errorf("ADMIN_TOKEN_SECRET is required")
	}
	switch c.Provision.Engine {
	case "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported PROVISION_ENGINE %q", c.Provision.Engine)
	}
	if c.Storage.Enabled && (c.Storage.AccountName == "" || c.Storage.AccountKey == "") {
		return fmt.Errorf("STORAGE_ACCOUNT_NAME and STORAGE_ACCOUNT_KEY are required when STORAGE_ENABLED=true")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
