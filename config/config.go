package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
	StorageMemory  = "memory"

	IndexerSQLite   = "sqlite"
	IndexerPostgres = "postgres"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	Storage     string `toml:"Storage"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`

	Log       LogConfig       `toml:"log"`
	RPC       RPCConfig       `toml:"rpc"`
	Auth      AuthConfig      `toml:"auth"`
	Indexer   IndexerConfig   `toml:"indexer"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		RPCAddress:  ":8080",
		DataDir:     "./market-data",
		Storage:     StorageLevelDB,
		GenesisFile: "",
		Environment: "local",
		Log:         LogConfig{Level: "info"},
		RPC: RPCConfig{
			ReadHeaderTimeout:  5,
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
			MaxBodyBytes:       1 << 20,
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			WebsocketBuffer:    64,
		},
		Auth: AuthConfig{
			Enabled:         true,
			HMACSecretEnv:   "NHBMARKET_JWT_SECRET",
			Issuer:          "nhbmarket",
			TokenTTLSeconds: 3600,
		},
		Indexer: IndexerConfig{
			Enabled:   true,
			Driver:    IndexerSQLite,
			DSN:       "market-index.db",
			QueueSize: 1024,
		},
		Telemetry: TelemetryConfig{Endpoint: "localhost:4318", Insecure: true},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage == "" {
		c.Storage = StorageLevelDB
	}
	c.Indexer.Driver = strings.ToLower(strings.TrimSpace(c.Indexer.Driver))
	if c.Indexer.Driver == "" {
		c.Indexer.Driver = IndexerSQLite
	}
	if c.Indexer.QueueSize <= 0 {
		c.Indexer.QueueSize = 1024
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
}

// StoragePath returns where the selected backend keeps its files.
func (c *Config) StoragePath() string {
	switch c.Storage {
	case StorageBolt:
		return filepath.Join(c.DataDir, "state.bolt")
	default:
		return filepath.Join(c.DataDir, "state")
	}
}

// IndexerDSN resolves a relative sqlite path against the data directory.
func (c *Config) IndexerDSN() string {
	if c.Indexer.Driver == IndexerSQLite && c.Indexer.DSN != "" && !filepath.IsAbs(c.Indexer.DSN) && !strings.HasPrefix(c.Indexer.DSN, "file:") {
		return filepath.Join(c.DataDir, c.Indexer.DSN)
	}
	return c.Indexer.DSN
}

// Secret resolves the HMAC signing secret, preferring the inline value.
func (a AuthConfig) Secret() ([]byte, error) {
	if secret := strings.TrimSpace(a.HMACSecret); secret != "" {
		return []byte(secret), nil
	}
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return []byte(secret), nil
		}
		return nil, fmt.Errorf("auth: environment variable %s is empty", env)
	}
	return nil, fmt.Errorf("auth: no HMAC secret configured")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
