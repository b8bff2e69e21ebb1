package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Auth      AuthConfig
	OTP       OTPConfig
	TwoFactor TwoFactorConfig
	Security  SecurityConfig
	WAF       WAFConfig
	Directory DirectoryConfig
	Email     EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	TempTokenExpiry    time.Duration
	SessionExpiryDays  int
	// BlacklistSkew pads blacklist TTLs so clock drift between instances
	// cannot resurrect a rotated token.
	BlacklistSkew   time.Duration
	CleanupInterval time.Duration
}

type OTPConfig struct {
	CodeLength  int
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

type TwoFactorConfig struct {
	EncryptionKey   string // 32 bytes, AES-256
	Issuer          string
	BackupCodeCount int
}

type SecurityConfig struct {
	BlockCacheTTL        time.Duration
	ThreatRetentionDays  int
	SessionRetentionDays int
}

type WAFConfig struct {
	Enabled bool
	Mode    string // DETECT or BLOCK
}

type DirectoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	accessSecret := getEnv("ACCESS_TOKEN_SECRET", "")
	refreshSecret := getEnv("REFRESH_TOKEN_SECRET", "")
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "aegis"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "")),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			AccessTokenSecret:  accessSecret,
			RefreshTokenSecret: refreshSecret,
			Issuer:             getEnv("TOKEN_ISSUER", "aegis"),
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			TempTokenExpiry:    getEnvAsDuration("TEMP_TOKEN_EXPIRY", 5*time.Minute),
			SessionExpiryDays:  getEnvAsInt("SESSION_EXPIRY_DAYS", 30),
			BlacklistSkew:      getEnvAsDuration("BLACKLIST_SKEW", 30*time.Second),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		OTP: OTPConfig{
			CodeLength:  getEnvAsInt("OTP_CODE_LENGTH", 6),
			TTL:         getEnvAsDuration("OTP_TTL", 5*time.Minute),
			Cooldown:    getEnvAsDuration("OTP_COOLDOWN", 60*time.Second),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
		},
		TwoFactor: TwoFactorConfig{
			EncryptionKey:   getEnv("TWO_FACTOR_ENCRYPTION_KEY", ""),
			Issuer:          getEnv("TWO_FACTOR_ISSUER", "Aegis"),
			BackupCodeCount: getEnvAsInt("TWO_FACTOR_BACKUP_CODES", 8),
		},
		Security: SecurityConfig{
			BlockCacheTTL:        getEnvAsDuration("BLOCK_CACHE_TTL", 5*time.Minute),
			ThreatRetentionDays:  getEnvAsInt("THREAT_RETENTION_DAYS", 90),
			SessionRetentionDays: getEnvAsInt("SESSION_RETENTION_DAYS", 30),
		},
		WAF: WAFConfig{
			Enabled: getEnvAsBool("WAF_ENABLED", true),
			Mode:    getEnv("WAF_MODE", "DETECT"),
		},
		Directory: DirectoryConfig{
			BaseURL: getEnv("USER_DIRECTORY_URL", "http://localhost:8081"),
			Timeout: getEnvAsDuration("USER_DIRECTORY_TIMEOUT", 3*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@localhost"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateTokenSecret(accessSecret, env); err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET: %w", err)
	}
	if err := validateTokenSecret(refreshSecret, env); err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_SECRET: %w", err)
	}

	if len(cfg.TwoFactor.EncryptionKey) != 32 {
		return nil, fmt.Errorf("TWO_FACTOR_ENCRYPTION_KEY must be exactly 32 bytes (got %d)",
			len(cfg.TwoFactor.EncryptionKey))
	}

	if cfg.WAF.Mode != "DETECT" && cfg.WAF.Mode != "BLOCK" {
		return nil, fmt.Errorf("WAF_MODE must be DETECT or BLOCK (got %q)", cfg.WAF.Mode)
	}

	return cfg, nil
}

// validateTokenSecret enforces minimum security standards for signing secrets
func validateTokenSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
