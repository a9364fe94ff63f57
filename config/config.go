package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevJWTSecret is only accepted when Env is "development".
const DevJWTSecret = "heartbridge_dev_secret_2024"

type Config struct {
	Env           string         `yaml:"env"`
	Port          string         `yaml:"port"`
	GinMode       string         `yaml:"gin_mode"`
	JWTSecret     string         `yaml:"jwt_secret"`
	TokenDuration time.Duration  `yaml:"token_duration"`
	LogLevel      string         `yaml:"log_level"`
	CORSOrigins   []string       `yaml:"cors_origins"`
	Database      DatabaseConfig `yaml:"database"`
	Admin         AdminConfig    `yaml:"admin"`
	Workflow      WorkflowConfig `yaml:"workflow"`
	Ranking       RankingConfig  `yaml:"ranking"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"`
}

// AdminConfig seeds the admin account at startup when Email is set.
type AdminConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type WorkflowConfig struct {
	RetryOnConflict bool `yaml:"retry_on_conflict"`
}

type RankingConfig struct {
	CompletedTaskWeight float64 `yaml:"completed_task_weight"`
	AverageRatingWeight float64 `yaml:"average_rating_weight"`
	Limit               int     `yaml:"limit"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Env:           "development",
		Port:          "8080",
		GinMode:       "debug",
		JWTSecret:     DevJWTSecret,
		TokenDuration: 7 * 24 * time.Hour,
		LogLevel:      "info",
		CORSOrigins:   []string{"http://localhost:3000"},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			DSN:      "heartbridge.db",
			LogLevel: "warn",
		},
		Admin: AdminConfig{Name: "HeartBridge Admin"},
		Workflow: WorkflowConfig{
			RetryOnConflict: true,
		},
		Ranking: RankingConfig{
			CompletedTaskWeight: 2,
			AverageRatingWeight: 1,
			Limit:               10,
		},
	}
}

// Load reads defaults, then the optional YAML file, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.Env = getEnv("HB_ENV", cfg.Env)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("HB_LOG_LEVEL", cfg.LogLevel)
	cfg.Database.Driver = getEnv("HB_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("HB_DB_DSN", cfg.Database.DSN)
	cfg.Admin.Name = getEnv("HB_ADMIN_NAME", cfg.Admin.Name)
	cfg.Admin.Email = getEnv("HB_ADMIN_EMAIL", cfg.Admin.Email)
	cfg.Admin.Password = getEnv("HB_ADMIN_PASSWORD", cfg.Admin.Password)
	if v := os.Getenv("HB_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("HB_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("HB_TOKEN_TTL: %w", err)
		}
		cfg.TokenDuration = d
	}
	if v := os.Getenv("HB_RETRY_ON_CONFLICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("HB_RETRY_ON_CONFLICT: %w", err)
		}
		cfg.Workflow.RetryOnConflict = b
	}
	return cfg, nil
}

// Validate rejects configurations that must not reach production.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == DevJWTSecret && c.Env != "development" {
		errs = append(errs, errors.New("jwt_secret uses the development default outside development"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Ranking.CompletedTaskWeight < 0 || c.Ranking.AverageRatingWeight < 0 {
		errs = append(errs, errors.New("ranking weights must not be negative"))
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		errs = append(errs, errors.New("admin.password is required when admin.email is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
