package config_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/config"
)

const testCfg = `
chain:
  rpc:
    host: https://mainnet.infura.io/v3/${INFURA_PROJECT_KEY}
    timeout: 20s
    rps: 10
  chain_id: 1
  block_time: 12s
  safe_logs_request: true
sync:
  max_block_range_size: 2000
  block_confirmations: 3
  retry:
    attempts: 4
    base_delay: 500ms
  max_consecutive_failures: 3
rewards:
  lp_points_per_usd_hour: 10
contracts:
  - name: usdc-vault
    kind: vault
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
    start_block: 756
    asset_decimals: 6
    asset_price_usd: 1
  - name: merger
    kind: merger
    address: 0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016
    start_block: 6478411
    merge_points_per_token: 2.5
postgres:
  user: test_user
  password: test_password
  host: test_host
  port: 5432
  database: test_db
log_level: info
presenter:
  host: 0.0.0.0:3333
alerts:
  stale_checkpoint:
    threshold: 2h
  lagging_rewards:
`

func int32Ptr(v int32) *int32 {
	return &v
}

//nolint:paralleltest
func TestReadConfigWithEnv(t *testing.T) {
	t.Setenv("INFURA_PROJECT_KEY", "12345678")
	cfg, err := config.ReadConfigWithEnv([]byte(testCfg))
	require.NoError(t, err)

	require.Equal(t, &config.ChainConfig{
		RPC: &config.RPCConfig{
			Host:    "https://mainnet.infura.io/v3/12345678",
			Timeout: 20 * time.Second,
			RPS:     10,
		},
		ChainID:         "1",
		BlockTime:       12 * time.Second,
		SafeLogsRequest: true,
	}, cfg.Chain)
	require.Equal(t, &config.SyncConfig{
		MaxBlockRangeSize:  2000,
		BlockConfirmations: 3,
		Retry: &config.RetryConfig{
			Attempts:  4,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  30 * time.Second,
		},
		MaxConsecutiveFailures: 3,
		Schedule:               "@hourly",
	}, cfg.Sync)
	require.True(t, cfg.Rewards.LPPointsPerUSDHour.Equal(decimal.NewFromInt(10)))
	require.Len(t, cfg.Contracts, 2)

	vault := cfg.Contracts[0]
	require.Equal(t, "usdc-vault", vault.Name)
	require.Equal(t, config.ContractKindVault, vault.Kind)
	require.Equal(t, common.HexToAddress("0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6"), vault.Address)
	require.Equal(t, uint(756), vault.StartBlock)
	require.Equal(t, int32Ptr(6), vault.AssetDecimals)
	require.Equal(t, int32(6), vault.Decimals())
	require.True(t, vault.AssetPriceUSD.Equal(decimal.NewFromInt(1)))

	merger := cfg.Contracts[1]
	require.Equal(t, config.ContractKindMerger, merger.Kind)
	require.Equal(t, int32(18), merger.Decimals())
	require.True(t, merger.MergePointsPerToken.Equal(decimal.RequireFromString("2.5")))

	require.Equal(t, &config.DBConfig{
		User:     "test_user",
		Password: "test_password",
		Host:     "test_host",
		Port:     5432,
		DB:       "test_db",
	}, cfg.DBConfig)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	require.Equal(t, &config.PresenterConfig{Host: "0.0.0.0:3333"}, cfg.Presenter)
	require.Equal(t, map[string]*config.AlertConfig{
		"stale_checkpoint": {Threshold: 2 * time.Hour},
		"lagging_rewards":  nil,
	}, cfg.Alerts)
}

func TestConfig_ContractsOfKind(t *testing.T) {
	t.Parallel()
	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)

	vaults := cfg.ContractsOfKind(config.ContractKindVault)
	require.Len(t, vaults, 1)
	require.Equal(t, "usdc-vault", vaults[0].Name)
	require.Nil(t, cfg.ContractByAddress(common.HexToAddress("0x01")))
	require.Equal(t, "merger", cfg.ContractByAddress(common.HexToAddress("0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016")).Name)
}

func TestReadConfig_Errors(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name  string
		Input string
		Err   error
	}{
		{
			Name:  "Missing rpc",
			Input: "chain:\n  chain_id: 1\n",
			Err:   config.ErrInvalidConfig,
		},
		{
			Name: "Unknown contract kind",
			Input: `
chain:
  rpc:
    host: http://localhost:8545
contracts:
  - name: pool
    kind: pool
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
`,
			Err: config.ErrUnknownContractKind,
		},
		{
			Name: "Duplicate contract",
			Input: `
chain:
  rpc:
    host: http://localhost:8545
contracts:
  - name: a
    kind: vault
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
  - name: b
    kind: vault
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
`,
			Err: config.ErrInvalidConfig,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			_, err := config.ReadConfig([]byte(test.Input))
			require.ErrorIs(t, err, test.Err)
		})
	}
}

func TestReadConfig_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.ReadConfig([]byte("chain:\n  rpc:\n    host: http://localhost\n  unknown: 1\n"))
	require.Error(t, err)
}

func TestReadConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.ReadConfig([]byte("chain:\n  rpc:\n    host: http://localhost:8545\n"))
	require.NoError(t, err)
	require.Equal(t, uint(1000), cfg.Sync.MaxBlockRangeSize)
	require.Equal(t, uint(1), cfg.Sync.BlockConfirmations)
	require.Equal(t, 5, cfg.Sync.Retry.Attempts)
	require.Equal(t, time.Second, cfg.Sync.Retry.BaseDelay)
	require.Equal(t, 0.3, cfg.Sync.Retry.Jitter)
	require.Equal(t, 5, cfg.Sync.MaxConsecutiveFailures)
	require.Equal(t, "@hourly", cfg.Sync.Schedule)
	require.Equal(t, 30*time.Second, cfg.Chain.RPC.Timeout)
	require.True(t, cfg.Rewards.LPPointsPerUSDHour.IsZero())
}

func TestReadConfig_DefaultLogLevel(t *testing.T) {
	t.Parallel()
	cfg, err := config.ReadConfig([]byte("chain:\n  rpc:\n    host: http://localhost:8545\n"))
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}
