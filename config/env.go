package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvAPIURL     = "SIGNALTAP_API_URL"
	EnvAPITimeout = "SIGNALTAP_API_TIMEOUT"
	EnvPollRate   = "SIGNALTAP_POLL_RATE"
	EnvPLCIP      = "SIGNALTAP_PLC_IP"
	EnvPLCSlot    = "SIGNALTAP_PLC_SLOT"
	EnvLogFile    = "SIGNALTAP_LOG_FILE"
)

// LoadEnvFile loads variables from a .env file without overriding ones already
// set in the process environment. A missing default ".env" is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config fields from the environment.
func (c *Config) ApplyEnv() error {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()

	if v := getEnv(EnvAPIURL, ""); v != "" {
		c.API.BaseURL = v
	}
	if v := getEnv(EnvAPITimeout, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPITimeout, err)
		}
		c.API.Timeout = d
	}
	if v := getEnv(EnvPollRate, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollRate, err)
		}
		c.PollRate = d
	}
	if v := getEnv(EnvPLCIP, ""); v != "" {
		c.Target.Address = v
	}
	if v := getEnv(EnvPLCSlot, ""); v != "" {
		slot, err := strconv.Atoi(v)
		if err != nil || slot < 0 {
			return fmt.Errorf("%s: invalid slot %q", EnvPLCSlot, v)
		}
		c.Target.Slot = slot
	}
	if v := getEnv(EnvLogFile, ""); v != "" {
		c.Log.File = v
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}
