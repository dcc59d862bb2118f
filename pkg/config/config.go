package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Crypto        CryptoConfig
	Artifacts     ArtifactsConfig
	Resets        ResetsConfig
	Notifications NotificationsConfig
	Exports       ExportsConfig
	Mail          MailConfig
	Bootstrap     BootstrapConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CryptoConfig holds key material for sealing stored secrets.
type CryptoConfig struct {
	// EncryptionKey is base64-encoded and must decode to 16, 24 or 32
	// bytes; it seals credential vault entries with AES-GCM.
	EncryptionKey string
}

// ArtifactsConfig governs upload validation and expiry defaults.
type ArtifactsConfig struct {
	EulogyExpiryDays int
	MaxFileSizeBytes int64
	AllowedTypes     []string
	ListingCacheTTL  time.Duration
}

// ResetsConfig controls the password reset code lifecycle.
type ResetsConfig struct {
	CodeTTL    time.Duration
	CodeDigits int
}

// NotificationsConfig tunes the fan-out worker queue.
type NotificationsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// ExportsConfig controls admin export generation and signed downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// MailConfig selects and configures the outbound mail sender.
type MailConfig struct {
	Provider  string
	APIKey    string
	FromName  string
	FromEmail string
}

// BootstrapConfig seeds the default admin account on first start.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Crypto = CryptoConfig{
		EncryptionKey: v.GetString("ENCRYPTION_KEY"),
	}

	maxFileSize := v.GetInt64("ARTIFACTS_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	expiryDays := v.GetInt("EULOGY_EXPIRY_DAYS")
	if expiryDays <= 0 {
		expiryDays = 3
	}
	cfg.Artifacts = ArtifactsConfig{
		EulogyExpiryDays: expiryDays,
		MaxFileSizeBytes: maxFileSize,
		AllowedTypes:     splitAndTrim(v.GetString("ARTIFACTS_ALLOWED_TYPES")),
		ListingCacheTTL:  parseDuration(v.GetString("ARTIFACTS_LISTING_CACHE_TTL"), time.Minute),
	}

	digits := v.GetInt("RESET_CODE_DIGITS")
	if digits < 4 || digits > 6 {
		digits = 6
	}
	cfg.Resets = ResetsConfig{
		CodeTTL:    parseDuration(v.GetString("RESET_CODE_TTL"), 24*time.Hour),
		CodeDigits: digits,
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Mail = MailConfig{
		Provider:  v.GetString("MAIL_PROVIDER"),
		APIKey:    v.GetString("MAIL_API_KEY"),
		FromName:  v.GetString("MAIL_FROM_NAME"),
		FromEmail: v.GetString("MAIL_FROM_EMAIL"),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		AdminName:     v.GetString("ADMIN_NAME"),
	}

	if cfg.Env == EnvProduction {
		if cfg.JWT.Secret == "" || cfg.JWT.Secret == "dev_secret" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		if cfg.Crypto.EncryptionKey == "" {
			return nil, errors.New("ENCRYPTION_KEY must be set in production")
		}
		if cfg.Exports.SignedURLSecret == "" || cfg.Exports.SignedURLSecret == "dev_exports_secret" {
			return nil, errors.New("EXPORTS_SIGNED_URL_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "portal-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENCRYPTION_KEY", "")

	v.SetDefault("EULOGY_EXPIRY_DAYS", 3)
	v.SetDefault("ARTIFACTS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("ARTIFACTS_ALLOWED_TYPES", ".pdf,.doc,.docx,.jpg,.jpeg,.png,.txt")
	v.SetDefault("ARTIFACTS_LISTING_CACHE_TTL", "1m")

	v.SetDefault("RESET_CODE_TTL", "24h")
	v.SetDefault("RESET_CODE_DIGITS", 6)

	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "TWOEM Online Productions")
	v.SetDefault("MAIL_FROM_EMAIL", "noreply@twoem.com")

	v.SetDefault("ADMIN_EMAIL", "admin@twoem.com")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_NAME", "Portal Administrator")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
