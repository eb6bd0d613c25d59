// Package config provides configuration management and environment variable
// handling for the pipeline.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the billboard ETL service.
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Geocoder   GeocoderConfig   `json:"geocoder"`
	ProfileAPI ProfileAPIConfig `json:"profile_api"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Listing    ListingConfig    `json:"listing"`
	Paths      PathsConfig      `json:"paths"`
	Server     ServerConfig     `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type GeocoderConfig struct {
	BaseURL         string        `json:"base_url"`
	APIKey          string        `json:"api_key"`
	Timeout         time.Duration `json:"timeout"`
	RequestInterval time.Duration `json:"request_interval"`
	Workers         int           `json:"workers"`
}

type ProfileAPIConfig struct {
	BaseURL string        `json:"base_url"`
	Token   string        `json:"token"`
	Timeout time.Duration `json:"timeout"`
	Enabled bool          `json:"enabled"`
}

type PipelineConfig struct {
	BatchSize       int           `json:"batch_size"`
	RetryCount      int           `json:"retry_count"`
	RetryDelay      time.Duration `json:"retry_delay"`
	CoordinateOrder string        `json:"coordinate_order"`
}

type ListingConfig struct {
	OrganizationID string `json:"organization_id"`
	OwnerID        string `json:"owner_id"`
}

type PathsConfig struct {
	CategoryMapFile string `json:"category_map_file"`
	StateDir        string `json:"state_dir"`
	OutputDir       string `json:"output_dir"`
	UploadDir       string `json:"upload_dir"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Load reads the configuration from environment variables, with a best-effort
// .env file overlay for local development.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "billboards"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Geocoder: GeocoderConfig{
			BaseURL:         getEnvString("GEOCODER_BASE_URL", ""),
			APIKey:          getEnvString("GOOGLE_MAPS_API_KEY", ""),
			Timeout:         getEnvDuration("GEOCODER_TIMEOUT", 10*time.Second),
			RequestInterval: getEnvDuration("GEOCODER_REQUEST_INTERVAL", 1*time.Second),
			Workers:         getEnvInt("GEOCODER_WORKERS", 5),
		},
		ProfileAPI: ProfileAPIConfig{
			BaseURL: getEnvString("PROFILE_API_URL", ""),
			Token:   getEnvString("PROFILE_API_TOKEN", ""),
			Timeout: getEnvDuration("PROFILE_API_TIMEOUT", 15*time.Minute),
			Enabled: getEnvBool("PROFILE_API_ENABLED", false),
		},
		Pipeline: PipelineConfig{
			BatchSize:       getEnvInt("PIPELINE_BATCH_SIZE", 10),
			RetryCount:      getEnvInt("PIPELINE_RETRY_COUNT", 3),
			RetryDelay:      getEnvDuration("PIPELINE_RETRY_DELAY", 60*time.Second),
			CoordinateOrder: getEnvString("PIPELINE_COORDINATE_ORDER", "lonlat"),
		},
		Listing: ListingConfig{
			OrganizationID: getEnvString("LISTING_ORGANIZATION_ID", ""),
			OwnerID:        getEnvString("LISTING_OWNER_ID", ""),
		},
		Paths: PathsConfig{
			CategoryMapFile: getEnvString("CATEGORY_MAP_FILE", "data/category_map.json"),
			StateDir:        getEnvString("STATE_DIR", "data/flow_states"),
			OutputDir:       getEnvString("OUTPUT_DIR", "data/output"),
			UploadDir:       getEnvString("UPLOAD_DIR", "data/uploads"),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 32*1024*1024),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "logs/etl.log"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would only fail later at
// an inconvenient time.
func Validate(cfg *Config) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "database host is required")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "database name is required")
	}
	if cfg.Redis.Addr == "" {
		errors = append(errors, "redis address is required")
	}
	if cfg.Pipeline.BatchSize <= 0 {
		errors = append(errors, "pipeline batch size must be positive")
	}
	if cfg.Pipeline.RetryCount <= 0 {
		errors = append(errors, "pipeline retry count must be positive")
	}
	switch cfg.Pipeline.CoordinateOrder {
	case "lonlat", "latlon":
	default:
		errors = append(errors, fmt.Sprintf("coordinate order must be lonlat or latlon, got %q", cfg.Pipeline.CoordinateOrder))
	}
	if cfg.ProfileAPI.Enabled && cfg.ProfileAPI.BaseURL == "" {
		errors = append(errors, "profile api url is required when the profile push is enabled")
	}
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		errors = append(errors, fmt.Sprintf("log output must be stdout, file or both, got %q", cfg.Logging.Output))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// DSN renders the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// loadEnvFile overlays key=value pairs from a local .env file onto the
// environment, never overriding variables that are already set.
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "=") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
			value = value[1 : len(value)-1]
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
