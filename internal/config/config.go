package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
	AWS      AWSConfig      `yaml:"aws"`
	APNs     APNsConfig     `yaml:"apns"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// ValkeyConfig holds the presence cache configuration
type ValkeyConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// AWSConfig holds S3 upload configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// APNsConfig holds push notification configuration
type APNsConfig struct {
	Enabled bool   `yaml:"enabled"`
	KeyFile string `yaml:"key_file"`
	KeyID   string `yaml:"key_id"`
	TeamID  string `yaml:"team_id"`
	Topic   string `yaml:"topic"`
	Sandbox bool   `yaml:"sandbox"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// EngineConfig holds the conversation-engine tunables
type EngineConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StoryTTL          time.Duration `yaml:"story_ttl"`
	StoryDuration     time.Duration `yaml:"story_duration"`
	StoryTick         time.Duration `yaml:"story_tick"`
	CallLogPageSize   int           `yaml:"call_log_page_size"`
}

// Engine defaults
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStoryTTL          = 24 * time.Hour
	DefaultStoryDuration     = 5 * time.Second
	DefaultStoryTick         = 100 * time.Millisecond
	DefaultCallLogPageSize   = 50
)

// Load reads configuration from a YAML file. A .env file, if present, is
// loaded first; environment variables override file values for secrets.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnv overrides secret values from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("VALKEY_PASSWORD"); v != "" {
		c.Valkey.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY"); v != "" {
		c.AWS.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_KEY"); v != "" {
		c.AWS.SecretKey = v
	}
}

// applyDefaults fills unset engine tunables
func (c *Config) applyDefaults() {
	if c.Engine.HeartbeatInterval <= 0 {
		c.Engine.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Engine.StoryTTL <= 0 {
		c.Engine.StoryTTL = DefaultStoryTTL
	}
	if c.Engine.StoryDuration <= 0 {
		c.Engine.StoryDuration = DefaultStoryDuration
	}
	if c.Engine.StoryTick <= 0 {
		c.Engine.StoryTick = DefaultStoryTick
	}
	if c.Engine.CallLogPageSize <= 0 {
		c.Engine.CallLogPageSize = DefaultCallLogPageSize
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
