package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret       string   `mapstructure:"JWT_SECRET"`
	AuthAPIURL      string   `mapstructure:"AUTH_API_URL"`
	AuthAPIKey      string   `mapstructure:"AUTH_API_KEY"`
	HolidayAPIURL   string   `mapstructure:"HOLIDAY_API_URL"`
	HolidayAPIToken string   `mapstructure:"HOLIDAY_API_TOKEN"`
	HolidayState    string   `mapstructure:"HOLIDAY_STATE"`
	DefaultClinic   string   `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
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
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("HOLIDAY_API_URL", "https://api.invertexto.com")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_API_URL")
	v.BindEnv("AUTH_API_KEY")
	v.BindEnv("HOLIDAY_API_URL")
	v.BindEnv("HOLIDAY_API_TOKEN")
	v.BindEnv("HOLIDAY_STATE")
	v.BindEnv("DEFAULT_CLINIC")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

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

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. JWT_SECRET is
// required outside development so that real token verification is enforced,
// and the realtime hubs refuse to start without the external auth API
// configured, since their connection handshake depends on it.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.AuthAPIURL == "" {
		return fmt.Errorf("AUTH_API_URL is required for the realtime connection handshake")
	}
	if c.AuthAPIKey == "" {
		return fmt.Errorf("AUTH_API_KEY is required for the realtime connection handshake")
	}
	return nil
}
