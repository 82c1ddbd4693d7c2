package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/repository/memory"
)

var (
	testVault = common.HexToAddress("0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6")
	testUser  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

func TestCheckpoints_Monotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()

	_, err := repo.Checkpoints.Get(ctx, testVault, entity.AggregationDeposit)
	require.ErrorIs(t, err, db.ErrNotFound)

	for _, block := range []uint{100, 50, 150, 149} {
		require.NoError(t, repo.Checkpoints.Save(ctx, testVault, entity.AggregationDeposit, block))
	}
	c, err := repo.Checkpoints.Get(ctx, testVault, entity.AggregationDeposit)
	require.NoError(t, err)
	require.Equal(t, uint(150), c.LastBlock)

	require.NoError(t, repo.Checkpoints.Save(ctx, testVault, entity.AggregationWithdrawal, 10))
	all, err := repo.Checkpoints.FindByAddresses(ctx, []common.Address{testVault})
	require.NoError(t, err)
	require.Len(t, all, 2)
	none, err := repo.Checkpoints.FindByAddresses(ctx, []common.Address{testUser})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestProcessedEvents_DuplicateSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()
	event := &entity.ProcessedEvent{AggregationType: entity.AggregationDeposit, EventID: "0xab1"}

	require.NoError(t, repo.ProcessedEvents.Save(ctx, event))
	require.NoError(t, repo.ProcessedEvents.Save(ctx, event))
	ok, err := repo.ProcessedEvents.Exists(ctx, entity.AggregationDeposit, "0xab1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.ProcessedEvents.Exists(ctx, entity.AggregationWithdrawal, "0xab1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPositions_OptimisticWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()
	ts := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, repo.Positions.Create(ctx, &entity.Position{
		DepositID:           "b",
		User:                testUser,
		Vault:               testVault,
		Shares:              uint256.NewInt(100),
		USDValue:            decimal.NewFromInt(100),
		DepositTimestamp:    ts,
		LastRewardTimestamp: ts,
	}))
	require.NoError(t, repo.Positions.Create(ctx, &entity.Position{
		DepositID:           "a",
		User:                testUser,
		Vault:               testVault,
		Shares:              uint256.NewInt(50),
		USDValue:            decimal.NewFromInt(50),
		DepositTimestamp:    ts,
		LastRewardTimestamp: ts,
	}))

	active, err := repo.Positions.FindActive(ctx, testUser, testVault)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "a", active[0].DepositID)

	active[0].Shares.SetUint64(1)
	stored, err := repo.Positions.GetByDepositID(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(50), stored.Shares.Uint64())

	require.ErrorIs(t, repo.Positions.AdvanceRewardClock(ctx, "a", ts.Add(time.Hour), ts), db.ErrConflict)
	require.NoError(t, repo.Positions.AdvanceRewardClock(ctx, "a", ts, ts.Add(time.Hour)))
	require.ErrorIs(t, repo.Positions.ReduceShares(ctx, "b", uint256.NewInt(99), uint256.NewInt(10), decimal.Zero), db.ErrConflict)
	require.NoError(t, repo.Positions.ReduceShares(ctx, "b", uint256.NewInt(100), uint256.NewInt(10), decimal.NewFromInt(10)))
	require.ErrorIs(t, repo.Positions.Delete(ctx, "b", uint256.NewInt(100)), db.ErrConflict)
	require.NoError(t, repo.Positions.Delete(ctx, "b", uint256.NewInt(10)))

	_, err = repo.Positions.GetByDepositID(ctx, "b")
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestUserPoints_Increment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()
	other := common.HexToAddress("0x01")

	require.NoError(t, repo.UserPoints.Increment(ctx, testUser, decimal.NewFromInt(10), entity.PointsCategoryLP))
	require.NoError(t, repo.UserPoints.Increment(ctx, testUser, decimal.NewFromInt(5), entity.PointsCategoryMerger))
	require.NoError(t, repo.UserPoints.Increment(ctx, other, decimal.NewFromInt(1), entity.PointsCategoryLP))
	require.Error(t, repo.UserPoints.Increment(ctx, other, decimal.NewFromInt(1), "unknown"))

	acc, err := repo.UserPoints.GetByUser(ctx, testUser)
	require.NoError(t, err)
	require.True(t, acc.LPPoints.Equal(decimal.NewFromInt(10)))
	require.True(t, acc.MergerPoints.Equal(decimal.NewFromInt(5)))
	require.True(t, acc.TotalPoints.Equal(decimal.NewFromInt(15)))

	top, err := repo.UserPoints.FindTop(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, testUser, top[0].User)
}

func TestStore_RunInTxRollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()
	errTest := errors.New("test")

	err := repo.Tx.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Checkpoints.Save(ctx, testVault, entity.AggregationDeposit, 10))
		return repo.Tx.RunInTx(ctx, func(ctx context.Context) error {
			require.NoError(t, repo.UserPoints.Increment(ctx, testUser, decimal.NewFromInt(1), entity.PointsCategoryLP))
			return errTest
		})
	})
	require.ErrorIs(t, err, errTest)

	_, err = repo.Checkpoints.Get(ctx, testVault, entity.AggregationDeposit)
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = repo.UserPoints.GetByUser(ctx, testUser)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestStore_RollbackKeepsOutsideWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewRepo()
	errTest := errors.New("test")
	otherVault := common.HexToAddress("0x0c")

	inTx := make(chan struct{})
	saved := make(chan error, 1)
	err := repo.Tx.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Checkpoints.Save(ctx, testVault, entity.AggregationDeposit, 10))
		go func() {
			<-inTx
			saved <- repo.Checkpoints.Save(context.Background(), otherVault, entity.AggregationDeposit, 20)
		}()
		close(inTx)
		time.Sleep(10 * time.Millisecond)
		return errTest
	})
	require.ErrorIs(t, err, errTest)
	require.NoError(t, <-saved)

	_, err = repo.Checkpoints.Get(ctx, testVault, entity.AggregationDeposit)
	require.ErrorIs(t, err, db.ErrNotFound)
	c, err := repo.Checkpoints.Get(ctx, otherVault, entity.AggregationDeposit)
	require.NoError(t, err)
	require.Equal(t, uint(20), c.LastBlock)
}
