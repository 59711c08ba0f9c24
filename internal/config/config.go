package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version      string             `yaml:"version" json:"version"`
	Server       ServerConfig       `yaml:"server" json:"server"`
	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Auth         AuthConfig         `yaml:"auth" json:"auth"`
	Registration RegistrationConfig `yaml:"registration" json:"registration"`
	Inventory    InventoryConfig    `yaml:"inventory" json:"inventory"`
	Forum        ForumConfig        `yaml:"forum" json:"forum"`
	Generator    GeneratorConfig    `yaml:"generator" json:"generator"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

type StorageConfig struct {
	DataDir string       `yaml:"data_dir" json:"data_dir"`
	Forum   ForumStorage `yaml:"forum" json:"forum"`
}

type ForumStorage struct {
	// Driver is "file" or "postgres".
	Driver      string `yaml:"driver" json:"driver"`
	PostgresDSN string `yaml:"postgres_dsn" json:"-"`
}

type AuthConfig struct {
	CookieName       string `yaml:"cookie_name" json:"cookie_name"`
	SessionTTLHours  int    `yaml:"session_ttl_hours" json:"session_ttl_hours"`
	CodeTTLMinutes   int    `yaml:"code_ttl_minutes" json:"code_ttl_minutes"`
	MaxCodeAttempts  int    `yaml:"max_code_attempts" json:"max_code_attempts"`
	BcryptCost       int    `yaml:"bcrypt_cost" json:"-"`
	AllowSkipVerify  bool   `yaml:"allow_skip_verification" json:"allow_skip_verification"`
	SimilarNameLimit int    `yaml:"similar_name_limit" json:"similar_name_limit"`
}

func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLHours) * time.Hour
}

func (a AuthConfig) CodeTTL() time.Duration {
	return time.Duration(a.CodeTTLMinutes) * time.Minute
}

type RegistrationConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

type InventoryConfig struct {
	ItemsPerPage  int `yaml:"items_per_page" json:"items_per_page"`
	MaxPages      int `yaml:"max_pages" json:"max_pages"`
	MaxItems      int `yaml:"max_items" json:"max_items"`
	DemoSeedGrant int `yaml:"demo_seed_grant" json:"demo_seed_grant"`
}

type ForumConfig struct {
	ThreadCooldownSeconds int      `yaml:"thread_cooldown_seconds" json:"thread_cooldown_seconds"`
	ReplyCooldownSeconds  int      `yaml:"reply_cooldown_seconds" json:"reply_cooldown_seconds"`
	RepliesPerPage        int      `yaml:"replies_per_page" json:"replies_per_page"`
	BannedWords           []string `yaml:"banned_words" json:"-"`
	SeedThreads           bool     `yaml:"seed_threads" json:"seed_threads"`
}

func (f ForumConfig) ThreadCooldown() time.Duration {
	return time.Duration(f.ThreadCooldownSeconds) * time.Second
}

func (f ForumConfig) ReplyCooldown() time.Duration {
	return time.Duration(f.ReplyCooldownSeconds) * time.Second
}

type GeneratorConfig struct {
	// Seed of 0 means "use the runtime's global source".
	Seed    uint64 `yaml:"seed" json:"seed"`
	Shuffle string `yaml:"shuffle" json:"shuffle"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.Forum.Driver == "" {
		c.Storage.Forum.Driver = "file"
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "galway_session"
	}
	if c.Auth.SessionTTLHours <= 0 {
		c.Auth.SessionTTLHours = 7 * 24
	}
	if c.Auth.CodeTTLMinutes <= 0 {
		c.Auth.CodeTTLMinutes = 10
	}
	if c.Auth.MaxCodeAttempts <= 0 {
		c.Auth.MaxCodeAttempts = 5
	}
	if c.Auth.SimilarNameLimit <= 0 {
		c.Auth.SimilarNameLimit = 5
	}

	if c.Registration.MaxAttempts <= 0 {
		c.Registration.MaxAttempts = 3
	}

	if c.Inventory.ItemsPerPage <= 0 {
		c.Inventory.ItemsPerPage = 16
	}
	if c.Inventory.MaxPages <= 0 {
		c.Inventory.MaxPages = 5
	}
	if c.Inventory.MaxItems <= 0 {
		c.Inventory.MaxItems = c.Inventory.ItemsPerPage * c.Inventory.MaxPages
	}
	if c.Inventory.DemoSeedGrant <= 0 {
		c.Inventory.DemoSeedGrant = 10
	}

	if c.Forum.ThreadCooldownSeconds <= 0 {
		c.Forum.ThreadCooldownSeconds = 10 * 60
	}
	if c.Forum.ReplyCooldownSeconds <= 0 {
		c.Forum.ReplyCooldownSeconds = 60
	}
	if c.Forum.RepliesPerPage <= 0 {
		c.Forum.RepliesPerPage = 10
	}
	if c.Forum.BannedWords == nil {
		c.Forum.BannedWords = []string{"spam", "test-banned-word"}
	}

	if c.Generator.Shuffle == "" {
		c.Generator.Shuffle = "uniform"
	}
}

// Default is the configuration used when no file is present.
func Default() *Config {
	c := &Config{Version: "1", Forum: ForumConfig{SeedThreads: true}}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML file, fills defaults and applies GALWAY_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c := Default()
			ApplyEnv(c)
			return c, nil
		}
		return nil, err
	}
	r := Config{Forum: ForumConfig{SeedThreads: true}}
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	r.ApplyDefaults()
	ApplyEnv(&r)
	return &r, nil
}
