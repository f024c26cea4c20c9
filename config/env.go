package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	Mode            string        `env:"GAME_MODE" envDefault:"offchain"`
	Network         string        `env:"NETWORK" envDefault:"memory"`
	RPCURL          string        `env:"RPC_URL"`
	ContractAddress string        `env:"CONTRACT_ADDRESS" envDefault:"0xb8404e09b36b66230000000000000000b8404e09"`
	PrivateKey      string        `env:"SERVER_PRIVATE_KEY"`
	ABIPath         string        `env:"CONTRACT_ABI_PATH"`
	PollInterval    time.Duration `env:"VRF_POLL_INTERVAL" envDefault:"1s"`
	PollAttempts    int           `env:"VRF_POLL_ATTEMPTS" envDefault:"30"`
	Production      bool          `env:"PRODUCTION" envDefault:"false"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	ServerAddr      string        `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
}

// Load reads .env (when present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.Mode != ModeOffChain && c.Mode != ModeOnChain {
		return fmt.Errorf("invalid GAME_MODE %q: want offchain or onchain", c.Mode)
	}
	if _, ok := Networks[c.Network]; !ok {
		return fmt.Errorf("unknown NETWORK %q", c.Network)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("VRF_POLL_INTERVAL must be positive")
	}
	if c.PollAttempts <= 0 {
		return fmt.Errorf("VRF_POLL_ATTEMPTS must be positive")
	}
	return nil
}

// NetworkInfo returns the selected network, with RPC_URL overriding the default endpoint.
func (c *Config) NetworkInfo() Network {
	n := Networks[c.Network]
	if c.RPCURL != "" {
		n.RPCURL = c.RPCURL
	}
	return n
}

// VerificationURL renders the explorer link for a transaction, or "" when the
// network has no explorer.
func (n Network) VerificationURL(txID string) string {
	if n.ExplorerURL == "" || txID == "" {
		return ""
	}
	return fmt.Sprintf(n.ExplorerURL, txID)
}
