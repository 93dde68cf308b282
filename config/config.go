package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"serpwatch/models"
)

type Config struct {
	Unblocker UnblockerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Pipeline  PipelineConfig
	QueuePath string
	LogLevel  string
	Platforms map[string]*PlatformConfig
}

type UnblockerConfig struct {
	BaseURL string
	APIKey  string
}

type DatabaseConfig struct {
	URL string
}

type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type PipelineConfig struct {
	PollMaxAttempts int
	PollDelayMS     int
	Concurrency     int // 1 = sequential
	MaxRenderedAds  int
}

// PlatformConfig describes one search engine, the default options jobs
// against it carry, and the query/location pairs scheduled runs watch.
type PlatformConfig struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Options         models.JobOptions `yaml:"options"`
	PollMaxAttempts int               `yaml:"poll_max_attempts"`
	PollDelayMS     int               `yaml:"poll_delay_ms"`
	Watch           []WatchEntry      `yaml:"watch"`
}

// WatchEntry is one query+location pair monitored on a platform
type WatchEntry struct {
	Query    string `yaml:"query"`
	Location string `yaml:"location"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Unblocker: UnblockerConfig{
			BaseURL: getEnv("UNBLOCKER_API_URL", "https://api.scrapingservice.com/v1"),
			APIKey:  os.Getenv("UNBLOCKER_API_KEY"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Storage: StorageConfig{
			Bucket:          os.Getenv("STORAGE_BUCKET"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        os.Getenv("STORAGE_ENDPOINT"),
			AccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("PIPELINE_CRON"),
		},
		Pipeline: PipelineConfig{
			PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 60),
			PollDelayMS:     getEnvInt("POLL_DELAY_MS", 10000),
			Concurrency:     getEnvInt("PIPELINE_CONCURRENCY", 1),
			MaxRenderedAds:  getEnvInt("MAX_RENDERED_ADS", 3),
		},
		QueuePath: getEnv("QUEUE_DB_PATH", "queue.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Platforms: make(map[string]*PlatformConfig),
	}

	if interval := os.Getenv("PIPELINE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadPlatformConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPlatformConfigs() error {
	configDir := "config/platforms"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var platform PlatformConfig
		if err := yaml.Unmarshal(data, &platform); err != nil {
			return err
		}

		c.Platforms[platform.ID] = &platform
	}

	return nil
}

// PollBudget returns the poll settings for a platform, falling back to
// the pipeline-wide defaults.
func (c *Config) PollBudget(platformID string) (maxAttempts int, delay time.Duration) {
	maxAttempts = c.Pipeline.PollMaxAttempts
	delayMS := c.Pipeline.PollDelayMS
	if p, ok := c.Platforms[platformID]; ok {
		if p.PollMaxAttempts > 0 {
			maxAttempts = p.PollMaxAttempts
		}
		if p.PollDelayMS > 0 {
			delayMS = p.PollDelayMS
		}
	}
	return maxAttempts, time.Duration(delayMS) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
