package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's TOML configuration.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	NetworkName string `toml:"NetworkName"`

	// JWTSecretEnv names the environment variable holding the admin token
	// secret. The secret itself never lives in the config file.
	JWTSecretEnv string `toml:"JWTSecretEnv"`

	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`

	// OperationCooldownSeconds throttles per-user question creation.
	// Zero keeps the default; negative disables the check.
	OperationCooldownSeconds int64 `toml:"OperationCooldownSeconds"`

	// IndexerDSN is the sqlite DSN for the event indexer. Empty disables
	// indexing.
	IndexerDSN string `toml:"IndexerDSN"`

	// LogFile routes logs to a rotating file instead of stdout.
	LogFile     string `toml:"LogFile"`
	Environment string `toml:"Environment"`

	ReadTimeout  duration `toml:"ReadTimeout"`
	WriteTimeout duration `toml:"WriteTimeout"`
}

type duration struct {
	time.Duration
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads the configuration from path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./qamarket-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "qamarket-local"
	}
	if strings.TrimSpace(c.JWTSecretEnv) == "" {
		c.JWTSecretEnv = "QAMARKET_RPC_SECRET"
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
}

// Validate rejects configurations that can't be run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("config: RateLimitPerSecond must not be negative")
	}
	return nil
}

// JWTSecret resolves the admin token secret from the environment. Empty means
// authentication is disabled.
func (c *Config) JWTSecret() []byte {
	secret := strings.TrimSpace(os.Getenv(c.JWTSecretEnv))
	if secret == "" {
		return nil
	}
	return []byte(secret)
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
