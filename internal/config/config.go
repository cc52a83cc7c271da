package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Server   ServerConfig
	AWS      AWSConfig
	Redis    RedisConfig
	Playback PlaybackConfig
	Progress ProgressConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	Log      LogConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AWSConfig holds AWS service configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3MediaBucket   string
	DynamoDBTable   string
	PresignTTL      time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PlaybackConfig holds playback controller tunables
type PlaybackConfig struct {
	PollInterval        time.Duration
	SkipForwardSeconds  float64
	SkipBackwardSeconds float64
	MinSpeed            float64
	MaxSpeed            float64
}

// ProgressConfig holds progress store configuration
type ProgressConfig struct {
	Backend   string // "file" or "redis"
	DataDir   string
	KeyPrefix string
}

// AuthConfig maps bearer subjects to roles and roles to permissions
type AuthConfig struct {
	Subjects    map[string][]string // subject -> roles
	Permissions map[string][]string // role -> permissions
}

// WorkerConfig holds analytics worker pool configuration
type WorkerConfig struct {
	Concurrency int
	PollTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catechize")

	setDefaults(v)

	// Config file is optional; defaults and env vars are enough to run
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CATECHIZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "catechize-playback")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 30*time.Second)
	v.SetDefault("server.idletimeout", 60*time.Second)

	// AWS defaults
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.s3mediabucket", "catechize-media")
	v.SetDefault("aws.dynamodbtable", "catechize-catalog")
	v.SetDefault("aws.presignttl", time.Hour)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Playback defaults
	v.SetDefault("playback.pollinterval", 250*time.Millisecond)
	v.SetDefault("playback.skipforwardseconds", 10.0)
	v.SetDefault("playback.skipbackwardseconds", 10.0)
	v.SetDefault("playback.minspeed", 0.25)
	v.SetDefault("playback.maxspeed", 4.0)

	// Progress defaults
	v.SetDefault("progress.backend", "file")
	v.SetDefault("progress.datadir", "./data/progress")
	v.SetDefault("progress.keyprefix", "catechize:progress")

	// Auth defaults: admin role owns catalog writes
	v.SetDefault("auth.permissions", map[string][]string{
		"admin": {"catalog.write", "progress.clear"},
	})

	// Worker defaults
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.polltimeout", 5*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
