package config

// LogConfig controls structured logging and optional file rotation.
type LogConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPCConfig bounds the JSON-RPC server. Timeouts are in seconds.
type RPCConfig struct {
	ReadHeaderTimeout  int     `toml:"ReadHeaderTimeout"`
	ReadTimeout        int     `toml:"ReadTimeout"`
	WriteTimeout       int     `toml:"WriteTimeout"`
	IdleTimeout        int     `toml:"IdleTimeout"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	TrustProxyHeaders  bool    `toml:"TrustProxyHeaders"`
	WebsocketBuffer    int     `toml:"WebsocketBuffer"`
}

// AuthConfig configures bearer token verification. When disabled the caller
// identity is taken from the request parameters, which is only suitable for
// local development.
type AuthConfig struct {
	Enabled         bool   `toml:"Enabled"`
	HMACSecret      string `toml:"HMACSecret"`
	HMACSecretEnv   string `toml:"HMACSecretEnv"`
	Issuer          string `toml:"Issuer"`
	Audience        string `toml:"Audience"`
	TokenTTLSeconds int    `toml:"TokenTTLSeconds"`
}

// IndexerConfig selects the relational event index. QueueSize bounds the
// events waiting to be archived; overflow is dropped.
type IndexerConfig struct {
	Enabled   bool   `toml:"Enabled"`
	Driver    string `toml:"Driver"`
	DSN       string `toml:"DSN"`
	QueueSize int    `toml:"QueueSize"`
}

// TelemetryConfig wires OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}
