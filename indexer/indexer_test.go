package indexer_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/contract/pointsabi"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/indexer"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/pricing"
	"github.com/omni/points-indexer/repository"
	"github.com/omni/points-indexer/repository/memory"
)

const testCfg = `
chain:
  rpc:
    host: http://localhost:8545
sync:
  max_block_range_size: 250
  block_confirmations: 1
  retry:
    attempts: 1
    base_delay: 1ms
  max_consecutive_failures: 1
rewards:
  lp_points_per_usd_hour: 1
contracts:
  - name: vault
    kind: vault
    address: 0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6
    start_block: 50
    asset_decimals: 0
    asset_price_usd: 1
  - name: merger
    kind: merger
    address: 0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016
    start_block: 50
    merge_points_per_token: 2.5
`

var (
	vault  = common.HexToAddress("0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6")
	merger = common.HexToAddress("0x4aa42145Aa6Ebf72e164C9bBC74fbD3788045016")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
	token  = common.HexToAddress("0x70ce")
	base   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	errRPC = errors.New("rpc unavailable")
)

type fakeSource struct {
	mu       sync.Mutex
	head     uint
	logs     []*entity.Log
	failHead bool
}

func (s *fakeSource) GetLogs(_ context.Context, topics []common.Hash, from, to uint, addresses []common.Address, _ bool) ([]*entity.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wantTopic := make(map[common.Hash]bool, len(topics))
	for _, topic := range topics {
		wantTopic[topic] = true
	}
	wantAddr := make(map[common.Address]bool, len(addresses))
	for _, addr := range addresses {
		wantAddr[addr] = true
	}
	var res []*entity.Log
	for _, log := range s.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to && wantAddr[log.Address] && wantTopic[*log.Topic0] {
			res = append(res, log)
		}
	}
	return res, nil
}

func (s *fakeSource) GetBlockTimestamp(_ context.Context, blockNumber uint) (time.Time, error) {
	return base.Add(time.Duration(blockNumber) * 12 * time.Second), nil
}

func (s *fakeSource) GetCurrentBlockNumber(context.Context) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHead {
		return 0, errRPC
	}
	return s.head, nil
}

func newLog(t *testing.T, addr common.Address, event string, block, index uint, indexed []common.Address, values ...int64) *entity.Log {
	t.Helper()
	e := pointsabi.EventsABI.Events[event]
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = big.NewInt(v)
	}
	data, err := e.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)
	topics := []common.Hash{e.ID}
	for _, a := range indexed {
		topics = append(topics, a.Hash())
	}
	log := &entity.Log{
		Address:         addr,
		Data:            data,
		BlockNumber:     block,
		LogIndex:        index,
		TransactionHash: common.BigToHash(big.NewInt(int64(block*1000 + index))),
	}
	log.Topic0 = &topics[0]
	if len(topics) > 1 {
		log.Topic1 = &topics[1]
	}
	if len(topics) > 2 {
		log.Topic2 = &topics[2]
	}
	if len(topics) > 3 {
		log.Topic3 = &topics[3]
	}
	return log
}

func mergedLog(t *testing.T, block uint, account common.Address, amount *big.Int) *entity.Log {
	t.Helper()
	e := pointsabi.EventsABI.Events["Merged"]
	data, err := e.Inputs.NonIndexed().Pack(amount)
	require.NoError(t, err)
	topic0, topic1 := e.ID, account.Hash()
	return &entity.Log{
		Address:         merger,
		Topic0:          &topic0,
		Topic1:          &topic1,
		Data:            data,
		BlockNumber:     block,
		TransactionHash: common.BigToHash(big.NewInt(int64(block * 1000))),
	}
}

func newIndexer(t *testing.T, source *fakeSource) (*indexer.Indexer, *repository.Repo, *config.Config) {
	t.Helper()
	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)
	repo := memory.NewRepo()
	ix, err := indexer.New(logging.NewDiscard(), cfg, repo, source, pricing.NewStaticOracle(cfg.Contracts))
	require.NoError(t, err)
	return ix, repo, cfg
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestBuildJobs(t *testing.T) {
	t.Parallel()
	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)

	jobs := indexer.BuildJobs(cfg)
	require.Len(t, jobs, 4)
	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name
	}
	require.Equal(t, []string{indexer.JobLP, indexer.JobFees, indexer.JobRewardsConversion, indexer.JobMerge}, names)

	lp := jobs[0]
	require.Len(t, lp.Topics, 3)
	require.Len(t, lp.Targets, 3)
	for i, aggType := range indexer.LPAggregations {
		require.Equal(t, aggType, lp.Targets[i].AggregationType)
		require.Equal(t, vault, lp.Targets[i].Address)
		require.Equal(t, uint(50), lp.Targets[i].StartBlock)
	}
	require.Equal(t, []common.Address{merger}, jobs[3].Addresses())

	cfg.Contracts = cfg.Contracts[:1]
	require.Len(t, indexer.BuildJobs(cfg), 3)
}

func TestIndexer_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := &fakeSource{head: 701, logs: []*entity.Log{
		newLog(t, vault, "Deposit", 100, 0, []common.Address{alice, alice}, 500, 1000),
		newLog(t, vault, "FeeCollected", 200, 0, []common.Address{token}, 42),
		newLog(t, vault, "RewardsConverted", 300, 0, []common.Address{token}, 10, 7),
		mergedLog(t, 400, bob, new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))),
		newLog(t, vault, "Withdraw", 700, 0, []common.Address{alice, alice, alice}, 200, 400),
	}}
	ix, repo, _ := newIndexer(t, source)

	_, ok, err := ix.Horizon(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.False(t, ix.Synced())
	require.NoError(t, ix.Sweep(ctx))
	require.True(t, ix.Synced())

	points, err := repo.UserPoints.GetByUser(ctx, alice)
	require.NoError(t, err)
	requireDecimal(t, "1000", points.LPPoints)
	requireDecimal(t, "1000", points.TotalPoints)

	positions, err := repo.Positions.FindByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, uint256.NewInt(600), positions[0].Shares)
	requireDecimal(t, "300", positions[0].USDValue)
	require.Equal(t, base.Add(700*12*time.Second), positions[0].LastRewardTimestamp)

	bobPoints, err := repo.UserPoints.GetByUser(ctx, bob)
	require.NoError(t, err)
	requireDecimal(t, "7.5", bobPoints.MergerPoints)

	fees, err := repo.FeeCollections.FindByVault(ctx, vault, 10)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	require.Equal(t, uint256.NewInt(42), fees[0].Amount)
	conversions, err := repo.RewardsConversions.FindByVault(ctx, vault, 10)
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	require.Equal(t, uint256.NewInt(7), conversions[0].AmountOut)

	for _, aggType := range indexer.LPAggregations {
		c, err := repo.Checkpoints.Get(ctx, vault, aggType)
		require.NoError(t, err)
		require.Equal(t, uint(700), c.LastBlock)
	}
	horizon, ok, err := ix.Horizon(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.Add(700*12*time.Second), horizon)

	// replaying a processed range changes nothing
	res, err := ix.ScanRange(ctx, indexer.JobLP, 1, 700)
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)
	res, err = ix.ScanRange(ctx, indexer.JobMerge, 1, 700)
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)

	points, err = repo.UserPoints.GetByUser(ctx, alice)
	require.NoError(t, err)
	requireDecimal(t, "1000", points.TotalPoints)
	bobPoints, err = repo.UserPoints.GetByUser(ctx, bob)
	require.NoError(t, err)
	requireDecimal(t, "7.5", bobPoints.TotalPoints)

	_, err = ix.ScanRange(ctx, "unknown", 1, 2)
	require.ErrorIs(t, err, indexer.ErrUnknownJob)
}

func TestIndexer_RescanAheadOfCheckpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := &fakeSource{head: 701, logs: []*entity.Log{
		newLog(t, vault, "Deposit", 100, 0, []common.Address{alice, alice}, 500, 1000),
		newLog(t, vault, "Withdraw", 700, 0, []common.Address{alice, alice, alice}, 200, 400),
	}}
	ix, repo, _ := newIndexer(t, source)

	res, err := ix.ScanRange(ctx, indexer.JobLP, 600, 700)
	require.NoError(t, err)
	require.Equal(t, 0, res.Windows)
	require.Equal(t, 0, res.Applied)

	require.NoError(t, ix.Sweep(ctx))
	positions, err := repo.Positions.FindByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, uint256.NewInt(600), positions[0].Shares)
	requireDecimal(t, "300", positions[0].USDValue)
}

func TestIndexer_SettlesUpToHorizon(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// 300 blocks after the deposit is one hour
	source := &fakeSource{head: 401, logs: []*entity.Log{
		newLog(t, vault, "Deposit", 100, 0, []common.Address{alice, alice}, 200, 200),
	}}
	ix, repo, _ := newIndexer(t, source)

	require.NoError(t, ix.Sweep(ctx))
	points, err := repo.UserPoints.GetByUser(ctx, alice)
	require.NoError(t, err)
	requireDecimal(t, "200", points.LPPoints)

	// a second sweep without new blocks credits nothing
	require.NoError(t, ix.Sweep(ctx))
	points, err = repo.UserPoints.GetByUser(ctx, alice)
	require.NoError(t, err)
	requireDecimal(t, "200", points.LPPoints)
}

func TestIndexer_Transfer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := &fakeSource{head: 201, logs: []*entity.Log{
		newLog(t, vault, "Deposit", 100, 0, []common.Address{alice, alice}, 400, 1000),
		newLog(t, vault, "Transfer", 100, 1, []common.Address{{}, alice}, 1000),
		newLog(t, vault, "Transfer", 150, 0, []common.Address{alice, bob}, 250),
		newLog(t, vault, "Transfer", 160, 0, []common.Address{bob, bob}, 250),
	}}
	ix, repo, _ := newIndexer(t, source)
	require.NoError(t, ix.Sweep(ctx))

	alicePositions, err := repo.Positions.FindByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, alicePositions, 1)
	require.Equal(t, uint256.NewInt(750), alicePositions[0].Shares)
	requireDecimal(t, "300", alicePositions[0].USDValue)

	bobPositions, err := repo.Positions.FindByUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobPositions, 1)
	require.Equal(t, uint256.NewInt(250), bobPositions[0].Shares)
	requireDecimal(t, "100", bobPositions[0].USDValue)
}

func TestIndexer_Sweep_TooManyFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := &fakeSource{head: 100, failHead: true}
	ix, _, _ := newIndexer(t, source)

	err := ix.Sweep(ctx)
	require.ErrorIs(t, err, errRPC)
	require.NotErrorIs(t, err, indexer.ErrTooManyFailures)
	require.False(t, ix.Synced())

	err = ix.Sweep(ctx)
	require.ErrorIs(t, err, indexer.ErrTooManyFailures)

	// a successful sweep resets the counters
	ix2, _, _ := newIndexer(t, source)
	require.Error(t, ix2.Sweep(ctx))
	source.mu.Lock()
	source.failHead = false
	source.mu.Unlock()
	require.NoError(t, ix2.Sweep(ctx))
	source.mu.Lock()
	source.failHead = true
	source.mu.Unlock()
	err = ix2.Sweep(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, indexer.ErrTooManyFailures)
}

func TestIndexer_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeSource{head: 10}
	ix, _, _ := newIndexer(t, source)

	done := make(chan error, 1)
	go func() {
		done <- ix.Run(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("indexer did not stop")
	}
}
