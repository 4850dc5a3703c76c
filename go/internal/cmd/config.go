package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	storeFile     = "file"
	storePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		StaticDir      string   `yaml:"static_dir"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Quiz struct {
		QuestionsFile string `yaml:"questions_file"`
		TimeLimitSec  int    `yaml:"time_limit_sec"`
	} `yaml:"quiz"`

	Snapshots struct {
		Store string `yaml:"store"`
		Dir   string `yaml:"dir"`
	} `yaml:"snapshots"`

	Events struct {
		NatsURL       string `yaml:"nats_url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"events"`

	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "3000"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Snapshots.Store = storeFile
	cfg.Snapshots.Dir = "saves"
	cfg.Events.Stream = "QUIZ_EVENTS"
	cfg.Events.SubjectPrefix = "quiz.events"
	cfg.LogLevel = "info"
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the optional YAML file at path, then applies environment
// overrides. An empty path skips the file.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Quiz.QuestionsFile = getEnv("QUESTIONS_FILE", c.Quiz.QuestionsFile)
	c.Quiz.TimeLimitSec = getEnvAsInt("TIME_LIMIT_SEC", c.Quiz.TimeLimitSec)

	c.Snapshots.Store = strings.ToLower(getEnv("SNAPSHOT_STORE", c.Snapshots.Store))
	c.Snapshots.Dir = getEnv("SAVES_DIR", c.Snapshots.Dir)

	c.Events.NatsURL = getEnv("NATS_URL", c.Events.NatsURL)
	c.Events.Stream = getEnv("NATS_STREAM", c.Events.Stream)
	c.Events.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Events.SubjectPrefix)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) validate() error {
	switch c.Snapshots.Store {
	case storeFile, storePostgres:
	default:
		return fmt.Errorf("unknown snapshot store %q", c.Snapshots.Store)
	}
	if c.Quiz.TimeLimitSec < 0 {
		return fmt.Errorf("time limit must not be negative, got %d", c.Quiz.TimeLimitSec)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
