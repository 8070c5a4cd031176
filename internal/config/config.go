package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret          string   `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes    int      `mapstructure:"TOKEN_TTL_MINUTES"`
	FieldEncryptionKey string   `mapstructure:"FIELD_ENCRYPTION_KEY"`
	BcryptCost         int      `mapstructure:"BCRYPT_COST"`
	RecordViewPolicy   string   `mapstructure:"RECORD_VIEW_POLICY"`
	MigrationsDir      string   `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL_MINUTES", 1440)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RECORD_VIEW_POLICY", "any-practitioner")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_MINUTES")
	v.BindEnv("FIELD_ENCRYPTION_KEY")
	v.BindEnv("BCRYPT_COST")
	v.BindEnv("RECORD_VIEW_POLICY")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Warn().Msg("============================================================")
		log.Warn().Msg("Server is running in DEVELOPMENT mode (ENV=development).")
		log.Warn().Msg("JWT_SECRET is not set; a random signing key will be used")
		log.Warn().Msg("and every issued token becomes invalid on restart.")
		log.Warn().Msg("Do NOT use this configuration in production.")
		log.Warn().Msg("============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production
// JWT_SECRET and FIELD_ENCRYPTION_KEY are required; the encryption key must
// be a 64-character hex string (32 bytes decoded) whenever it is set, and the
// record view policy must be a known value.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
		if c.FieldEncryptionKey == "" {
			return fmt.Errorf("FIELD_ENCRYPTION_KEY is required in production")
		}
	}

	if c.FieldEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.FieldEncryptionKey)
		if err != nil {
			return fmt.Errorf("FIELD_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("FIELD_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.RecordViewPolicy != "any-practitioner" && c.RecordViewPolicy != "author-only" {
		return fmt.Errorf("RECORD_VIEW_POLICY must be \"any-practitioner\" or \"author-only\", got %q", c.RecordViewPolicy)
	}

	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}

	if c.BcryptCost < 10 || c.BcryptCost > 16 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 16, got %d", c.BcryptCost)
	}

	return nil
}

// EncryptionKeyBytes returns the decoded field-encryption key, or nil when
// no key is configured. Validate has already checked the format.
func (c *Config) EncryptionKeyBytes() []byte {
	if c.FieldEncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.FieldEncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
