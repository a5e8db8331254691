package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort int `yaml:"http_port"`

	DownloadDir string `yaml:"download_dir"`
	DataDir     string `yaml:"data_dir"`
	PersistJobs bool   `yaml:"persist_jobs"`

	MaxConcurrent int    `yaml:"max_concurrent"`
	QueuePolicy   string `yaml:"queue_policy"` // queue or reject

	JobTimeout      time.Duration `yaml:"job_timeout"`
	RetentionWindow time.Duration `yaml:"retention_window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	ExtractorPath string   `yaml:"extractor_path"`
	URLPatterns   []string `yaml:"url_patterns"`
	ProbeURL      string   `yaml:"probe_url"`
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8000),
		DownloadDir:     getEnv("DOWNLOAD_DIR", "./downloads"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		PersistJobs:     getEnvBool("PERSIST_JOBS", false),
		MaxConcurrent:   getEnvInt("MAX_CONCURRENT_DOWNLOADS", 2),
		QueuePolicy:     getEnv("QUEUE_POLICY", "queue"),
		JobTimeout:      time.Duration(getEnvInt("JOB_TIMEOUT_MINUTES", 30)) * time.Minute,
		RetentionWindow: time.Duration(getEnvInt("MAX_FILE_AGE_HOURS", 48)) * time.Hour,
		CleanupInterval: time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
		ExtractorPath:   getEnv("EXTRACTOR_PATH", "yt-dlp"),
		URLPatterns:     getEnvList("URL_PATTERNS"),
		ProbeURL:        getEnv("PROBE_URL", "https://www.youtube.com"),
	}
}

// LoadFile overlays a YAML config file on top of the environment defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
