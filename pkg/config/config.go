package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries process-level defaults. Command-line flags layered on top
// by the CLI take precedence.
type Config struct {
	LogLevel        string
	OutputDir       string
	RedisAddr       string
	RedisDB         int
	TrainWindowDays int
	DateTimeout     time.Duration
	Parallelism     int
}

func Load() *Config {
	return &Config{
		LogLevel:        getEnv("TABADJUST_LOG_LEVEL", "INFO"),
		OutputDir:       getEnv("TABADJUST_OUTPUT_DIR", "results"),
		RedisAddr:       getEnv("TABADJUST_REDIS_ADDR", ""),
		RedisDB:         GetEnvInt("TABADJUST_REDIS_DB", 0),
		TrainWindowDays: GetEnvInt("TABADJUST_TRAIN_WINDOW_DAYS", 7),
		DateTimeout:     getEnvDuration("TABADJUST_DATE_TIMEOUT", 0),
		Parallelism:     GetEnvInt("TABADJUST_PARALLELISM", 1),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
