package util

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// GetEnv returns the environment variable or the default when unset.
func GetEnv(key string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

// GetEnvAsInt returns the environment variable parsed as int, falling
// back to the default on absence or parse failure.
func GetEnvAsInt(key string, defaultVal int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Environment variable is not an int; using default")
		return defaultVal
	}
	return i
}

// GetEnvAsFloat64 returns the environment variable parsed as float64,
// falling back to the default on absence or parse failure.
func GetEnvAsFloat64(key string, defaultVal float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Environment variable is not a float; using default")
		return defaultVal
	}
	return f
}

// GetEnvAsBool returns the environment variable parsed as bool, falling
// back to the default on absence or parse failure.
func GetEnvAsBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Environment variable is not a bool; using default")
		return defaultVal
	}
	return b
}

// GetEnvAsDuration returns the environment variable parsed as a
// duration string (e.g. "500ms", "3s"), falling back to the default.
func GetEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Environment variable is not a duration; using default")
		return defaultVal
	}
	return d
}
