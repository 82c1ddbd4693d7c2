package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxBlockRangeSize      = 1000
	defaultBlockConfirmations     = 1
	defaultRetryAttempts          = 5
	defaultRetryBaseDelay         = time.Second
	defaultRetryJitter            = 0.3
	defaultRetryMaxDelay          = 30 * time.Second
	defaultMaxConsecutiveFailures = 5
	defaultSchedule               = "@hourly"
	defaultRPCTimeout             = 30 * time.Second
	defaultAssetDecimals          = 18
)

var (
	ErrUnknownContractKind = errors.New("unknown contract kind")
	ErrInvalidConfig       = errors.New("invalid config")
)

type ContractKind string

const (
	ContractKindVault  ContractKind = "vault"
	ContractKindMerger ContractKind = "merger"
)

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
}

type ChainConfig struct {
	RPC             *RPCConfig    `yaml:"rpc"`
	ChainID         string        `yaml:"chain_id"`
	BlockTime       time.Duration `yaml:"block_time"`
	SafeLogsRequest bool          `yaml:"safe_logs_request"`
}

type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	Jitter    float64       `yaml:"jitter"`
}

type SyncConfig struct {
	MaxBlockRangeSize      uint         `yaml:"max_block_range_size"`
	BlockConfirmations     uint         `yaml:"block_confirmations"`
	Retry                  *RetryConfig `yaml:"retry"`
	MaxConsecutiveFailures int          `yaml:"max_consecutive_failures"`
	Schedule               string       `yaml:"schedule"`
}

type RewardsConfig struct {
	LPPointsPerUSDHour decimal.Decimal `yaml:"lp_points_per_usd_hour"`
}

type ContractConfig struct {
	Name                string          `yaml:"name"`
	Kind                ContractKind    `yaml:"kind"`
	Address             common.Address  `yaml:"address"`
	StartBlock          uint            `yaml:"start_block"`
	AssetDecimals       *int32          `yaml:"asset_decimals"`
	AssetPriceUSD       decimal.Decimal `yaml:"asset_price_usd"`
	MergePointsPerToken decimal.Decimal `yaml:"merge_points_per_token"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type AlertConfig struct {
	Threshold time.Duration `yaml:"threshold"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chain     *ChainConfig            `yaml:"chain"`
	Sync      *SyncConfig             `yaml:"sync"`
	Rewards   *RewardsConfig          `yaml:"rewards"`
	Contracts []*ContractConfig       `yaml:"contracts"`
	DBConfig  *DBConfig               `yaml:"postgres"`
	LogLevel  logrus.Level            `yaml:"log_level"`
	Presenter *PresenterConfig        `yaml:"presenter"`
	Alerts    map[string]*AlertConfig `yaml:"alerts"`
}

func (c *Config) ContractsOfKind(kind ContractKind) []*ContractConfig {
	var res []*ContractConfig
	for _, contract := range c.Contracts {
		if contract.Kind == kind {
			res = append(res, contract)
		}
	}
	return res
}

func (c *Config) ContractByAddress(addr common.Address) *ContractConfig {
	for _, contract := range c.Contracts {
		if contract.Address == addr {
			return contract
		}
	}
	return nil
}

func (c *ContractConfig) Decimals() int32 {
	if c.AssetDecimals == nil {
		return defaultAssetDecimals
	}
	return *c.AssetDecimals
}

func processConfig(cfg *Config) error {
	if cfg.Chain == nil || cfg.Chain.RPC == nil || cfg.Chain.RPC.Host == "" {
		return fmt.Errorf("chain rpc host is not specified: %w", ErrInvalidConfig)
	}
	if cfg.Chain.RPC.Timeout == 0 {
		cfg.Chain.RPC.Timeout = defaultRPCTimeout
	}
	if cfg.Sync == nil {
		cfg.Sync = new(SyncConfig)
	}
	if cfg.Sync.MaxBlockRangeSize == 0 {
		cfg.Sync.MaxBlockRangeSize = defaultMaxBlockRangeSize
	}
	if cfg.Sync.BlockConfirmations == 0 {
		cfg.Sync.BlockConfirmations = defaultBlockConfirmations
	}
	if cfg.Sync.Retry == nil {
		cfg.Sync.Retry = new(RetryConfig)
	}
	if cfg.Sync.Retry.Attempts <= 0 {
		cfg.Sync.Retry.Attempts = defaultRetryAttempts
	}
	if cfg.Sync.Retry.BaseDelay == 0 {
		cfg.Sync.Retry.BaseDelay = defaultRetryBaseDelay
	}
	if cfg.Sync.Retry.MaxDelay == 0 {
		cfg.Sync.Retry.MaxDelay = defaultRetryMaxDelay
	}
	if cfg.Sync.Retry.Jitter == 0 {
		cfg.Sync.Retry.Jitter = defaultRetryJitter
	}
	if cfg.Sync.MaxConsecutiveFailures <= 0 {
		cfg.Sync.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.Sync.Schedule == "" {
		cfg.Sync.Schedule = defaultSchedule
	}
	if cfg.Rewards == nil {
		cfg.Rewards = new(RewardsConfig)
	}
	if cfg.Rewards.LPPointsPerUSDHour.IsNegative() {
		return fmt.Errorf("negative lp points rate: %w", ErrInvalidConfig)
	}
	seen := make(map[common.Address]bool, len(cfg.Contracts))
	for _, contract := range cfg.Contracts {
		switch contract.Kind {
		case ContractKindVault, ContractKindMerger:
		default:
			return fmt.Errorf("contract %q has kind %q: %w", contract.Name, contract.Kind, ErrUnknownContractKind)
		}
		if contract.Address == (common.Address{}) {
			return fmt.Errorf("contract %q has no address: %w", contract.Name, ErrInvalidConfig)
		}
		if seen[contract.Address] {
			return fmt.Errorf("contract %s is listed twice: %w", contract.Address, ErrInvalidConfig)
		}
		seen[contract.Address] = true
		if contract.StartBlock == 0 {
			contract.StartBlock = 1
		}
	}
	return nil
}

func parseYaml(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := &Config{LogLevel: logrus.InfoLevel}
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	if err := processConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
