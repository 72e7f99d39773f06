package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"governance-project/governor"
)

// EnvPrefix prefixes environment overrides, e.g. GOVD_SERVER_PORT
const EnvPrefix = "GOVD"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Governor GovernorConfig `mapstructure:"governor"`
	Timelock TimelockConfig `mapstructure:"timelock"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

type StorageConfig struct {
	Engine string `mapstructure:"engine"`
	Path   string `mapstructure:"path"`
}

type ChainConfig struct {
	// GenesisTime is RFC 3339; empty means the time the store is created
	GenesisTime string        `mapstructure:"genesis_time"`
	BlockTime   time.Duration `mapstructure:"block_time"`
	AutoMine    bool          `mapstructure:"auto_mine"`
}

type GovernorConfig struct {
	VotingDelay       uint64 `mapstructure:"voting_delay"`
	VotingPeriod      uint64 `mapstructure:"voting_period"`
	ProposalThreshold string `mapstructure:"proposal_threshold"`
	QuorumNumerator   uint64 `mapstructure:"quorum_numerator"`
	QueueGracePeriod  uint64 `mapstructure:"queue_grace_period"`
}

type TimelockConfig struct {
	MinDelay time.Duration `mapstructure:"min_delay"`
	// Executors may hold the zero address to open execution to anyone
	Executors     []string `mapstructure:"executors"`
	RenounceAdmin bool     `mapstructure:"renounce_admin"`
}

type GenesisConfig struct {
	Deployer    string       `mapstructure:"deployer"`
	Allocations []Allocation `mapstructure:"allocations"`
}

// Allocation mints Amount to Address at bootstrap and delegates it to
// Delegate, or to Address itself when Delegate is empty
type Allocation struct {
	Address  string `mapstructure:"address"`
	Amount   string `mapstructure:"amount"`
	Delegate string `mapstructure:"delegate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.engine", "leveldb")
	v.SetDefault("storage.path", "data/govd")
	v.SetDefault("chain.genesis_time", "")
	v.SetDefault("chain.block_time", "12s")
	v.SetDefault("chain.auto_mine", false)
	v.SetDefault("governor.voting_delay", 1)
	v.SetDefault("governor.voting_period", 5)
	v.SetDefault("governor.proposal_threshold", "0")
	v.SetDefault("governor.quorum_numerator", 4)
	v.SetDefault("governor.queue_grace_period", 0)
	v.SetDefault("timelock.min_delay", "1h")
	v.SetDefault("timelock.executors", []string{common.Address{}.Hex()})
	v.SetDefault("timelock.renounce_admin", false)
	v.SetDefault("genesis.deployer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

// Default returns the configuration with no file and no environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Load reads path (when set) over the defaults and applies GOVD_* environment overrides
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("%w: chain.block_time must be positive", ErrInvalidConfig)
	}
	if _, err := c.Chain.Genesis(); err != nil {
		return err
	}
	if _, err := c.Governor.Settings(); err != nil {
		return err
	}
	if _, err := c.Timelock.ExecutorAddresses(); err != nil {
		return err
	}
	if _, err := c.Genesis.DeployerAddress(); err != nil {
		return err
	}
	for i := range c.Genesis.Allocations {
		if _, _, _, err := c.Genesis.Allocations[i].Parse(); err != nil {
			return err
		}
	}
	return nil
}

// Genesis returns the genesis block time, the current time when unset
func (c ChainConfig) Genesis() (time.Time, error) {
	if c.GenesisTime == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, c.GenesisTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: chain.genesis_time: %v", ErrInvalidConfig, err)
	}
	return t, nil
}

func (c GovernorConfig) Settings() (governor.Settings, error) {
	threshold, err := parseAmount("governor.proposal_threshold", c.ProposalThreshold, true)
	if err != nil {
		return governor.Settings{}, err
	}
	s := governor.Settings{
		VotingDelay:       c.VotingDelay,
		VotingPeriod:      c.VotingPeriod,
		ProposalThreshold: threshold,
		QuorumNumerator:   c.QuorumNumerator,
		QueueGracePeriod:  c.QueueGracePeriod,
	}
	if err := s.Validate(); err != nil {
		return governor.Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return s, nil
}

func (c TimelockConfig) ExecutorAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(c.Executors))
	for _, e := range c.Executors {
		addr, err := parseAddress("timelock.executors", e)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (c GenesisConfig) DeployerAddress() (common.Address, error) {
	return parseAddress("genesis.deployer", c.Deployer)
}

// Parse returns the holder, amount and delegate of an allocation
func (a Allocation) Parse() (common.Address, *big.Int, common.Address, error) {
	holder, err := parseAddress("genesis.allocations.address", a.Address)
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	amount, err := parseAmount("genesis.allocations.amount", a.Amount, false)
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	delegate := holder
	if a.Delegate != "" {
		if delegate, err = parseAddress("genesis.allocations.delegate", a.Delegate); err != nil {
			return common.Address{}, nil, common.Address{}, err
		}
	}
	return holder, amount, delegate, nil
}

func parseAddress(key, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s: %q is not an address", ErrInvalidConfig, key, v)
	}
	return common.HexToAddress(v), nil
}

func parseAmount(key, v string, allowZero bool) (*big.Int, error) {
	if v == "" && allowZero {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 || (!allowZero && n.Sign() == 0) {
		return nil, fmt.Errorf("%w: %s: %q", ErrInvalidConfig, key, v)
	}
	return n, nil
}
