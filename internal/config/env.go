package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides selected settings from GALWAY_* variables.
// Unset or malformed values leave the current setting alone.
func ApplyEnv(c *Config) {
	if v := getEnv("GALWAY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getEnv("GALWAY_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := getEnv("GALWAY_FORUM_DRIVER"); v != "" {
		c.Storage.Forum.Driver = strings.ToLower(v)
	}
	if v := getEnv("GALWAY_POSTGRES_DSN"); v != "" {
		c.Storage.Forum.PostgresDSN = v
	}
	if v := getEnv("GALWAY_CORS_ORIGINS"); v != "" {
		origins := []string{}
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			c.Server.CORSOrigins = origins
		}
	}
	if v := getEnv("GALWAY_GENERATOR_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Generator.Seed = n
		}
	}
	if v := getEnv("GALWAY_SHUFFLE"); v != "" {
		c.Generator.Shuffle = v
	}
	if val := getEnvInt("GALWAY_REGISTRATION_MAX_ATTEMPTS"); val > 0 {
		c.Registration.MaxAttempts = val
	}
	if val := getEnvInt("GALWAY_SESSION_TTL_HOURS"); val > 0 {
		c.Auth.SessionTTLHours = val
	}
	if val := getEnvInt("GALWAY_CODE_TTL_MINUTES"); val > 0 {
		c.Auth.CodeTTLMinutes = val
	}
	if val := getEnvInt("GALWAY_CODE_MAX_ATTEMPTS"); val > 0 {
		c.Auth.MaxCodeAttempts = val
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string) int {
	val := getEnv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
