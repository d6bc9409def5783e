package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/plutus/webengage-pipeline/internal/pipeline"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig       `yaml:"server"`
	Redis    RedisConfig        `yaml:"redis"`
	Inbox    InboxConfig        `yaml:"inbox"`
	Defaults DefaultsConfig     `yaml:"defaults"`
	Profiles []pipeline.Profile `yaml:"profiles"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// RedisConfig holds run store configuration. When disabled the service
// keeps runs in memory and loses them on restart.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL returns how long run reports and artifacts are retained.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// InboxConfig holds S3 export inbox settings. When enabled the service
// polls the bucket for fresh Zoom exports and cleans them unattended.
type InboxConfig struct {
	Enabled         bool   `yaml:"enabled"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	AWSProfile      string `yaml:"aws_profile"`
	Prefix          string `yaml:"prefix"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	Profile         string `yaml:"profile"`
}

// Interval returns the polling interval as a duration
func (c InboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c InboxConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "" // Running on ECS or Lambda, use IAM role
	}
	return c.AWSProfile
}

// DefaultsConfig holds pipeline settings shared by every profile that does
// not set its own value.
type DefaultsConfig struct {
	DatetimeThreshold  float64                  `yaml:"datetime_threshold"`
	DatetimeLayouts    []string                 `yaml:"datetime_layouts"`
	TimeAggregation    pipeline.Aggregation     `yaml:"time_aggregation"`
	CategoryTokens     []pipeline.CategoryToken `yaml:"category_tokens"`
	ConductorMap       map[string]string        `yaml:"conductor_map"`
	ApprovedConductors []string                 `yaml:"approved_conductors"`
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

	for i := range cfg.Profiles {
		if err := cfg.Profiles[i].Validate(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTLHours == 0 {
		cfg.Redis.TTLHours = 72
	}
	if cfg.Inbox.IntervalMinutes == 0 {
		cfg.Inbox.IntervalMinutes = 10
	}
	if cfg.Inbox.S3Region == "" {
		cfg.Inbox.S3Region = "ap-south-1"
	}
	if cfg.Inbox.Profile == "" {
		cfg.Inbox.Profile = "webinar-attended"
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}
	for i := range cfg.Profiles {
		mergeProfileDefaults(&cfg.Profiles[i], cfg.Defaults)
		cfg.Profiles[i] = cfg.Profiles[i].WithDefaults()
	}
}

// mergeProfileDefaults fills profile fields left unset in YAML from the
// shared defaults block. Profile values always win.
func mergeProfileDefaults(p *pipeline.Profile, d DefaultsConfig) {
	if p.DatetimeThreshold == 0 {
		p.DatetimeThreshold = d.DatetimeThreshold
	}
	if p.DatetimeLayouts == nil {
		p.DatetimeLayouts = d.DatetimeLayouts
	}
	if p.TimeAggregation == "" {
		p.TimeAggregation = d.TimeAggregation
	}
	if p.CategoryTokens == nil {
		p.CategoryTokens = d.CategoryTokens
	}
	if p.ConductorMap == nil {
		p.ConductorMap = d.ConductorMap
	}
	if p.ApprovedConductors == nil {
		p.ApprovedConductors = d.ApprovedConductors
	}
}

// DefaultConductorMap maps Zoom host IDs to the conductor who runs that
// room. Host IDs are matched with spaces intact, exactly as exported.
func DefaultConductorMap() map[string]string {
	return map[string]string{
		"989 8318 8454": "Sukhpreet Monga",
	}
}

// DefaultApprovedConductors lists the conductors allowed on the webinar
// calendar. Anyone else resolves but raises a warning.
func DefaultApprovedConductors() []string {
	return []string{
		"Sukhpreet Monga",
		"Satyarth Dwivedi",
		"Khushi Gera",
	}
}

// DefaultProfiles returns the built-in cleaning profiles used when the
// config file defines none.
func DefaultProfiles() []pipeline.Profile {
	conductors := DefaultConductorMap()
	approved := DefaultApprovedConductors()
	return []pipeline.Profile{
		{
			Name:               "webinar-attended",
			Kind:               pipeline.KindWebinarAttended,
			EventName:          "Webinar Attended",
			ConductorMap:       conductors,
			ApprovedConductors: approved,
		},
		{
			Name:               "registrations",
			Kind:               pipeline.KindRegistration,
			EventName:          "Webinar Registration",
			ConductorMap:       conductors,
			ApprovedConductors: approved,
		},
		{
			Name:               "bootcamp",
			Kind:               pipeline.KindBootcampDual,
			EventName:          "Bootcamp Attended",
			ConductorMap:       conductors,
			ApprovedConductors: approved,
		},
	}
}

// Profile returns the named cleaning profile.
func (c *Config) Profile(name string) (pipeline.Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return pipeline.Profile{}, false
}

// ProfileNames lists the configured profiles in declaration order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		if !cfg.Redis.Enabled {
			cfg.Redis.Enabled = true
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	// Inbox overrides
	if v := os.Getenv("INBOX_S3_BUCKET"); v != "" {
		cfg.Inbox.S3Bucket = v
	}
	if v := os.Getenv("INBOX_S3_REGION"); v != "" {
		cfg.Inbox.S3Region = v
	}

	return cfg, nil
}
