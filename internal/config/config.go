package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environments understood by the service.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env        string `envconfig:"APP_ENV" default:"development"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
	AppName    string `envconfig:"APP_NAME" default:"Auth API"`

	MySQLDSN string `envconfig:"MYSQL_DSN" required:"true"`
	ResetDB  bool   `envconfig:"RESET_DB" default:"false"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	JWT   JWTConfig       `ignored:"true"`
	OTP   OTPConfig       `ignored:"true"`
	Email EmailConfig     `ignored:"true"`
	Rate  RateLimitConfig `ignored:"true"`

	SwaggerEnabled bool   `envconfig:"SWAGGER_ENABLED" default:"true"`
	SwaggerHost    string `envconfig:"SWAGGER_HOST"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// JWTConfig configures the token issuer.
type JWTConfig struct {
	AccessSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	AccessExpiresIn  time.Duration `envconfig:"JWT_EXPIRES_IN" default:"1h"`
	RefreshSecret    string        `envconfig:"JWT_REFRESH_TOKEN_SECRET" required:"true"`
	RefreshExpiresIn time.Duration `envconfig:"JWT_REFRESH_EXPIRES_IN" default:"8760h"`
	// ResetSecret falls back to AccessSecret when empty.
	ResetSecret    string        `envconfig:"RESET_TOKEN_SECRET"`
	ResetExpiresIn time.Duration `envconfig:"RESET_EXPIRES_IN" default:"15m"`
}

// OTPConfig configures one-time codes.
type OTPConfig struct {
	TTL time.Duration `envconfig:"OTP_TTL" default:"10m"`
}

// EmailConfig configures outbound mail. An empty SMTPHost selects the log sender.
type EmailConfig struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPass     string `envconfig:"SMTP_PASS"`
	From         string `envconfig:"EMAIL_FROM"`
	SupportEmail string `envconfig:"SUPPORT_EMAIL"`
}

// RateLimitConfig holds the limiter tiers.
type RateLimitConfig struct {
	APILimit        int           `envconfig:"RATE_API_LIMIT" default:"300"`
	APIWindow       time.Duration `envconfig:"RATE_API_WINDOW" default:"15m"`
	AuthLimit       int           `envconfig:"RATE_AUTH_LIMIT" default:"30"`
	AuthWindow      time.Duration `envconfig:"RATE_AUTH_WINDOW" default:"10m"`
	SensitiveLimit  int           `envconfig:"RATE_SENSITIVE_LIMIT" default:"10"`
	SensitiveWindow time.Duration `envconfig:"RATE_SENSITIVE_WINDOW" default:"15m"`
	UserLimit       int           `envconfig:"RATE_USER_LIMIT" default:"500"`
	UserWindow      time.Duration `envconfig:"RATE_USER_WINDOW" default:"15m"`
}

// Load reads an optional .env file and builds Config from the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments use the process environment.
	_ = godotenv.Load()

	var cfg Config
	// Sections are processed separately so their keys are not prefixed.
	sections := []interface{}{&cfg, &cfg.JWT, &cfg.OTP, &cfg.Email, &cfg.Rate}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("process env: %w", err)
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be one of development, test, production; got %q", c.Env)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	durations := map[string]time.Duration{
		"JWT_EXPIRES_IN":         c.JWT.AccessExpiresIn,
		"JWT_REFRESH_EXPIRES_IN": c.JWT.RefreshExpiresIn,
		"RESET_EXPIRES_IN":       c.JWT.ResetExpiresIn,
		"OTP_TTL":                c.OTP.TTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Email.SMTPHost != "" && c.Email.From == "" && c.Email.SMTPUser == "" {
		return fmt.Errorf("EMAIL_FROM or SMTP_USER is required when SMTP_HOST is set")
	}
	return nil
}

// IsProduction reports whether details should be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ResetSecret returns the signing key for password reset tokens.
func (c *Config) ResetSecret() string {
	if c.JWT.ResetSecret != "" {
		return c.JWT.ResetSecret
	}
	return c.JWT.AccessSecret
}

// MailFrom returns the sender address.
func (c *Config) MailFrom() string {
	if c.Email.From != "" {
		return c.Email.From
	}
	return c.Email.SMTPUser
}
