package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mzhirov/quizhall/internal/live"
	"github.com/mzhirov/quizhall/internal/models"
)

// Config is the yaml configuration file, with env fallbacks for the
// values that differ per deployment.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Session struct {
		ChgkSeconds   int `yaml:"chgk_seconds"`
		MatrixSeconds int `yaml:"matrix_seconds"`
		QuizSeconds   int `yaml:"quiz_seconds"`
		TTLMinutes    int `yaml:"ttl_minutes"`
		ReapMinutes   int `yaml:"reap_minutes"`
	} `yaml:"session"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

// DatabaseConfig holds Postgres connection settings, read from DB_* env
// variables.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
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

// loadConfig reads the yaml file at path. A missing file is not an error;
// defaults apply.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// coordinatorConfig translates the file values into coordinator tuning,
// keeping the observed defaults where the file is silent.
func coordinatorConfig(cfg *Config) live.Config {
	out := live.DefaultConfig()
	if cfg.Session.ChgkSeconds > 0 {
		out.PartDurations[models.GamePartChgk] = time.Duration(cfg.Session.ChgkSeconds) * time.Second
	}
	if cfg.Session.MatrixSeconds > 0 {
		out.PartDurations[models.GamePartMatrix] = time.Duration(cfg.Session.MatrixSeconds) * time.Second
	}
	if cfg.Session.QuizSeconds > 0 {
		out.PartDurations[models.GamePartQuiz] = time.Duration(cfg.Session.QuizSeconds) * time.Second
	}
	if cfg.Session.TTLMinutes > 0 {
		out.SessionTTL = time.Duration(cfg.Session.TTLMinutes) * time.Minute
	}
	if cfg.Session.ReapMinutes > 0 {
		out.ReapInterval = time.Duration(cfg.Session.ReapMinutes) * time.Minute
	}
	return out
}

func databaseConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "quizhall"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}
