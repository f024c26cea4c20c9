package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	base := Config{Mode: "offchain", Network: NetworkMemory, PollInterval: time.Second, PollAttempts: 30}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"onchain testnet", func(c *Config) { c.Mode = "onchain"; c.Network = NetworkTestnet }, false},
		{"bad mode", func(c *Config) { c.Mode = "hybrid" }, true},
		{"bad network", func(c *Config) { c.Network = "flow" }, true},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero attempts", func(c *Config) { c.PollAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNetworkInfo(t *testing.T) {
	c := Config{Network: NetworkTestnet}
	if got := c.NetworkInfo().RPCURL; got != "https://rpc.sepolia.mantle.xyz" {
		t.Errorf("default RPC = %s", got)
	}

	c.RPCURL = "http://node:8545"
	if got := c.NetworkInfo().RPCURL; got != "http://node:8545" {
		t.Errorf("override RPC = %s", got)
	}
}

func TestVerificationURL(t *testing.T) {
	if got := Networks[NetworkTestnet].VerificationURL("0xabc"); got != "https://sepolia.mantlescan.xyz/tx/0xabc" {
		t.Errorf("VerificationURL = %s", got)
	}
	if got := Networks[NetworkMemory].VerificationURL("0xabc"); got != "" {
		t.Errorf("memory network should have no explorer, got %s", got)
	}
	if got := Networks[NetworkMainnet].VerificationURL(""); got != "" {
		t.Errorf("empty tx should render empty URL, got %s", got)
	}
}
