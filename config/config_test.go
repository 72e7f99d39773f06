package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 12*time.Second, cfg.Chain.BlockTime)
	assert.Equal(t, time.Hour, cfg.Timelock.MinDelay)

	executors, err := cfg.Timelock.ExecutorAddresses()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{{}}, executors)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
governor:
  voting_period: 20
  quorum_numerator: 10
  proposal_threshold: "5"
timelock:
  min_delay: 2m
genesis:
  allocations:
    - address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
      amount: "300"
      delegate: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
`), 0o644))
	t.Setenv("GOVD_STORAGE_ENGINE", "memory")
	t.Setenv("GOVD_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Engine)
	assert.Equal(t, 2*time.Minute, cfg.Timelock.MinDelay)

	settings, err := cfg.Governor.Settings()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), settings.VotingPeriod)
	assert.Equal(t, uint64(10), settings.QuorumNumerator)
	assert.Equal(t, int64(5), settings.ProposalThreshold.Int64())

	require.Len(t, cfg.Genesis.Allocations, 1)
	holder, amount, delegate, err := cfg.Genesis.Allocations[0].Parse()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), holder)
	assert.Equal(t, int64(300), amount.Int64())
	assert.Equal(t, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), delegate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"block time", func(c *Config) { c.Chain.BlockTime = 0 }},
		{"genesis time", func(c *Config) { c.Chain.GenesisTime = "yesterday" }},
		{"voting period", func(c *Config) { c.Governor.VotingPeriod = 0 }},
		{"quorum", func(c *Config) { c.Governor.QuorumNumerator = 101 }},
		{"threshold", func(c *Config) { c.Governor.ProposalThreshold = "-1" }},
		{"executor", func(c *Config) { c.Timelock.Executors = []string{"nobody"} }},
		{"deployer", func(c *Config) { c.Genesis.Deployer = "" }},
		{"allocation", func(c *Config) {
			c.Genesis.Allocations = []Allocation{{Address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", Amount: "0"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
