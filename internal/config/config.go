package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	History HistoryConfig `yaml:"history"`
	Publish PublishConfig `yaml:"publish"`
	Admin   AdminConfig   `yaml:"admin"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Version string `yaml:"version"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" || os.Getenv("ECS_CONTAINER_METADATA_URI") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// PathsConfig holds the file-system locations the server reads and writes.
type PathsConfig struct {
	ThemesConfig  string `yaml:"themes_config"`  // themes/datasets JSON document
	OutputDir     string `yaml:"output_dir"`     // generated reports
	CSVSourcesDir string `yaml:"csv_sources_dir"` // CSV inputs scanned by check-csv
	FrontendDist  string `yaml:"frontend_dist"`  // built SPA
	WatchThemes   bool   `yaml:"watch_themes"`   // reload the themes document on write
}

// EngineConfig describes how the external report engine is invoked.
type EngineConfig struct {
	Interpreter        string `yaml:"interpreter"`
	WorkDir            string `yaml:"work_dir"`   // engine sources; cwd of the child process
	ScriptDir          string `yaml:"script_dir"` // where transient scripts are written
	ScriptExt          string `yaml:"script_ext"`
	Module             string `yaml:"module"`
	Function           string `yaml:"function"`
	YearsFunction      string `yaml:"years_function"`
	GenerateTemplate   string `yaml:"generate_template"` // optional template file path
	YearsTemplate      string `yaml:"years_template"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"` // 0 waits forever
	VerifyOutput       *bool  `yaml:"verify_output"`
	SingleFlight       bool   `yaml:"single_flight"`
	SerializeIdentical bool   `yaml:"serialize_identical"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
}

// Timeout returns the configured process timeout as a duration
func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL returns the distributed lock TTL as a duration
func (c EngineConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ShouldVerifyOutput reports whether a claimed output file is checked on disk
// before success is reported.
func (c EngineConfig) ShouldVerifyOutput() bool {
	if c.VerifyOutput == nil {
		return true
	}
	return *c.VerifyOutput
}

// CacheConfig holds the available-years cache settings.
type CacheConfig struct {
	RedisURL        string `yaml:"redis_url"`
	YearsTTLSeconds int    `yaml:"years_ttl_seconds"`
	MemoryEntries   int    `yaml:"memory_entries"`
}

// YearsTTL returns the years cache TTL as a duration
func (c CacheConfig) YearsTTL() time.Duration {
	return time.Duration(c.YearsTTLSeconds) * time.Second
}

// HistoryConfig holds generation history persistence settings.
type HistoryConfig struct {
	DatabaseURL   string `yaml:"database_url"`
	MemoryRecords int    `yaml:"memory_records"`
	MaxLogLines   int    `yaml:"max_log_lines"`
}

// PublishConfig holds S3 mirroring of generated reports.
type PublishConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain
}

// Enabled reports whether publishing is configured.
func (c PublishConfig) Enabled() bool { return c.S3Bucket != "" }

// AdminConfig holds the demo user directory shown on the admin screen.
type AdminConfig struct {
	Users []AdminUser `yaml:"users"`
}

// AdminUser is one entry of the demo directory.
type AdminUser struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Email      string `yaml:"email" json:"email"`
	Role       string `yaml:"role" json:"role"`
	Status     string `yaml:"status" json:"status"`
	Department string `yaml:"department" json:"department"`
	LastLogin  string `yaml:"last_login" json:"lastLogin"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "4.0.0"
	}

	if cfg.Paths.ThemesConfig == "" {
		cfg.Paths.ThemesConfig = "themes_config.json"
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = "output"
	}
	if cfg.Paths.CSVSourcesDir == "" {
		cfg.Paths.CSVSourcesDir = "csv_sources"
	}
	if cfg.Paths.FrontendDist == "" {
		cfg.Paths.FrontendDist = "Frontend/dist"
	}

	if cfg.Engine.Interpreter == "" {
		cfg.Engine.Interpreter = "python3"
	}
	if cfg.Engine.WorkDir == "" {
		cfg.Engine.WorkDir = "Backend"
	}
	if cfg.Engine.ScriptExt == "" {
		cfg.Engine.ScriptExt = ".py"
	}
	if cfg.Engine.Module == "" {
		cfg.Engine.Module = "prisme_engine"
	}
	if cfg.Engine.Function == "" {
		cfg.Engine.Function = "generate_prisme_excel"
	}
	if cfg.Engine.YearsFunction == "" {
		cfg.Engine.YearsFunction = "detect_available_years"
	}
	if cfg.Engine.LockTTLSeconds == 0 {
		cfg.Engine.LockTTLSeconds = 900
	}

	if cfg.Cache.YearsTTLSeconds == 0 {
		cfg.Cache.YearsTTLSeconds = 300
	}
	if cfg.Cache.MemoryEntries == 0 {
		cfg.Cache.MemoryEntries = 256
	}

	if cfg.History.MemoryRecords == 0 {
		cfg.History.MemoryRecords = 200
	}
	if cfg.History.MaxLogLines == 0 {
		cfg.History.MaxLogLines = 200
	}

	if cfg.Publish.S3Region == "" {
		cfg.Publish.S3Region = "eu-west-3"
	}
	if cfg.Publish.S3Prefix == "" {
		cfg.Publish.S3Prefix = "reports"
	}
}

// Default returns a configuration holding only defaults. Used when no YAML
// file is present (CLI usage from the repository root).
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with environment variables when they are set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("PRISME_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRISME_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PRISME_THEMES_CONFIG"); v != "" {
		cfg.Paths.ThemesConfig = v
	}
	if v := os.Getenv("PRISME_OUTPUT_DIR"); v != "" {
		cfg.Paths.OutputDir = v
	}
	if v := os.Getenv("PRISME_CSV_DIR"); v != "" {
		cfg.Paths.CSVSourcesDir = v
	}
	if v := os.Getenv("PRISME_FRONTEND_DIST"); v != "" {
		cfg.Paths.FrontendDist = v
	}
	if v := os.Getenv("PRISME_PYTHON"); v != "" {
		cfg.Engine.Interpreter = v
	}
	if v := os.Getenv("PRISME_ENGINE_DIR"); v != "" {
		cfg.Engine.WorkDir = v
	}

	// Backing services
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.History.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("PRISME_S3_BUCKET"); v != "" {
		cfg.Publish.S3Bucket = v
	}
	if v := os.Getenv("PRISME_S3_REGION"); v != "" {
		cfg.Publish.S3Region = v
	}
}
