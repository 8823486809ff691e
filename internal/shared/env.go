package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads key=value pairs from a dotenv file into the process environment.
//
// A missing file is not an error; variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values from GLANCE_* variables and the NATS_URL/NATS_TOKEN pair.
func ApplyEnv(c *Config) error {
	if v, ok := os.LookupEnv("GLANCE_USER_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GLANCE_USER_ID=%q", ErrInvalidConfig, v)
		}
		c.Instance.UserID = id
	}
	if v := os.Getenv("GLANCE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("GLANCE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("GLANCE_FEATURE_CONSTANTS"); ok {
		c.Instance.FeatureConstants = v
	}
	if v := os.Getenv("GLANCE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	return nil
}
