package config

import "fmt"

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	switch c.Storage {
	case StorageLevelDB, StorageBolt:
		if c.DataDir == "" {
			return fmt.Errorf("DataDir must be set for %s storage", c.Storage)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unsupported Storage %q", c.Storage)
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when RateLimitPerSecond is set")
	}
	if c.Auth.Enabled && c.Auth.HMACSecret == "" && c.Auth.HMACSecretEnv == "" {
		return fmt.Errorf("auth: HMACSecret or HMACSecretEnv required when enabled")
	}
	if c.Indexer.Enabled {
		switch c.Indexer.Driver {
		case IndexerSQLite, IndexerPostgres:
		default:
			return fmt.Errorf("indexer: unsupported Driver %q", c.Indexer.Driver)
		}
		if c.Indexer.DSN == "" {
			return fmt.Errorf("indexer: DSN required")
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
