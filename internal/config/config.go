package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the complete service configuration, populated from the
// environment (REWARDHUB_* variables, optionally via a .env file).
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"` // "json" or "text"

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	SessionExpiry time.Duration `envconfig:"SESSION_EXPIRY" default:"24h"`

	Chain ChainConfig
}

// ChainConfig holds blockchain client settings. The retry and timeout
// defaults are process-wide tunables; they rarely need overriding outside
// of tests.
type ChainConfig struct {
	RPCURL          string `envconfig:"RPC_URL" default:"http://127.0.0.1:7545"`
	PrivateKey      string `envconfig:"PRIVATE_KEY" required:"true"`
	ContractAddress string `envconfig:"CONTRACT_ADDRESS" required:"true"`

	MaxAttempts       int           `envconfig:"CHAIN_MAX_ATTEMPTS" default:"3"`
	InitialRetryDelay time.Duration `envconfig:"CHAIN_INITIAL_RETRY_DELAY" default:"1s"`
	MaxRetryDelay     time.Duration `envconfig:"CHAIN_MAX_RETRY_DELAY" default:"10s"`
	GasLimitBuffer    float64       `envconfig:"CHAIN_GAS_LIMIT_BUFFER" default:"1.2"`
	TxTimeout         time.Duration `envconfig:"CHAIN_TX_TIMEOUT" default:"60s"`
	ProbeTimeout      time.Duration `envconfig:"CHAIN_PROBE_TIMEOUT" default:"30s"`

	ReconcileInterval time.Duration `envconfig:"CHAIN_RECONCILE_INTERVAL" default:"2m"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	// Missing .env is the normal case in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("rewardhub", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.Chain.MaxAttempts < 1 {
		return fmt.Errorf("chain max attempts must be at least 1, got %d", c.Chain.MaxAttempts)
	}
	if c.Chain.GasLimitBuffer < 1.0 {
		return fmt.Errorf("gas limit buffer must be >= 1.0, got %v", c.Chain.GasLimitBuffer)
	}
	if !strings.HasPrefix(c.Chain.ContractAddress, "0x") || len(c.Chain.ContractAddress) != 42 {
		return fmt.Errorf("contract address %q is not a 0x-prefixed 20-byte hex address", c.Chain.ContractAddress)
	}
	if key := strings.TrimPrefix(c.Chain.PrivateKey, "0x"); len(key) != 64 {
		return fmt.Errorf("signing key must be 32 bytes of hex")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.LogFormat)
	}
	return nil
}
