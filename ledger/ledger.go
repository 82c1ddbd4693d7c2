package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/rewards"
	"github.com/omni/points-indexer/utils"
)

// Ledger reconstructs LP positions as FIFO lots. Every mutation takes the
// (user, vault) lock inside its transaction, so the lock is always acquired
// after the transaction regardless of whether the caller opened one.
type Ledger struct {
	logger    logging.Logger
	tx        entity.Transactor
	positions entity.PositionsRepo
	engine    *rewards.Engine
	locks     *keyedMutex
}

type WithdrawalResult struct {
	Consumed    *uint256.Int
	Unmatched   *uint256.Int
	ReleasedUSD decimal.Decimal
	Closed      int
	Reduced     int
}

type SettleResult struct {
	Positions int
	Settled   int
	Points    decimal.Decimal
}

func New(logger logging.Logger, tx entity.Transactor, positions entity.PositionsRepo, engine *rewards.Engine) *Ledger {
	return &Ledger{
		logger:    logger,
		tx:        tx,
		positions: positions,
		engine:    engine,
		locks:     newKeyedMutex(),
	}
}

func toDecimal(x *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(x.ToBig(), 0)
}

// ApplyDeposit opens a new lot whose reward clock starts at the deposit time.
// Replaying the same depositID is a no-op.
func (l *Ledger) ApplyDeposit(ctx context.Context, user, vault common.Address, shares *uint256.Int, usdValue decimal.Decimal, timestamp time.Time, depositID string) error {
	logger := l.logger.WithFields(logrus.Fields{
		"deposit_id": depositID,
		"user":       user,
		"vault":      vault,
	})
	if shares.IsZero() {
		logger.Warn("ignoring deposit of zero shares")
		return nil
	}
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		defer l.locks.Lock(positionKey{user: user, vault: vault})()
		err := l.positions.Create(ctx, &entity.Position{
			DepositID:           depositID,
			User:                user,
			Vault:               vault,
			Shares:              new(uint256.Int).Set(shares),
			USDValue:            usdValue,
			DepositTimestamp:    timestamp,
			LastRewardTimestamp: timestamp,
		})
		if err != nil {
			return err
		}
		utils.AfterCommit(ctx, func() {
			PositionsOpened.WithLabelValues(vault.String()).Inc()
			logger.WithFields(logrus.Fields{
				"shares":    shares,
				"usd_value": usdValue,
			}).Info("opened position")
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("can't open position: %w", err)
	}
	return nil
}

// ApplyWithdrawal burns shares from the user's lots, oldest first, settling each
// touched lot up to timestamp before it shrinks. A partially consumed lot keeps
// its USD value scaled by the fraction of shares left. Shares burned beyond
// what the ledger tracks are reported as Unmatched and do not fail the call.
func (l *Ledger) ApplyWithdrawal(ctx context.Context, user, vault common.Address, sharesBurned *uint256.Int, usdValue decimal.Decimal, timestamp time.Time) (*WithdrawalResult, error) {
	var res *WithdrawalResult
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		defer l.locks.Lock(positionKey{user: user, vault: vault})()
		var err error
		if res, err = l.withdraw(ctx, user, vault, sharesBurned, timestamp); err != nil {
			return err
		}
		utils.AfterCommit(ctx, func() {
			logger := l.logger.WithFields(logrus.Fields{
				"user":         user,
				"vault":        vault,
				"shares":       sharesBurned,
				"usd_value":    usdValue,
				"released_usd": res.ReleasedUSD,
				"closed":       res.Closed,
				"reduced":      res.Reduced,
			})
			if res.Closed > 0 {
				PositionsClosed.WithLabelValues(vault.String()).Add(float64(res.Closed))
			}
			if !res.Unmatched.IsZero() {
				ReconciliationDrift.WithLabelValues(vault.String()).Inc()
				logger.WithField("unmatched_shares", res.Unmatched).Warn("withdrawal exceeds tracked shares, ledger drift")
			}
			logger.Info("applied withdrawal")
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Ledger) withdraw(ctx context.Context, user, vault common.Address, sharesBurned *uint256.Int, timestamp time.Time) (*WithdrawalResult, error) {
	lots, err := l.positions.FindActive(ctx, user, vault)
	if err != nil {
		return nil, fmt.Errorf("can't load active positions: %w", err)
	}
	left := new(uint256.Int).Set(sharesBurned)
	res := &WithdrawalResult{
		Consumed:    new(uint256.Int),
		ReleasedUSD: decimal.Zero,
	}
	for _, lot := range lots {
		if left.IsZero() {
			break
		}
		if _, err = l.engine.Accrue(ctx, lot, timestamp); err != nil {
			return nil, err
		}
		consumed := lot.Shares
		if left.Lt(lot.Shares) {
			consumed = left
		}
		consumed = new(uint256.Int).Set(consumed)

		if consumed.Eq(lot.Shares) {
			if err = l.positions.Delete(ctx, lot.DepositID, lot.Shares); err != nil {
				return nil, fmt.Errorf("can't close position %s: %w", lot.DepositID, err)
			}
			res.ReleasedUSD = res.ReleasedUSD.Add(lot.USDValue)
			res.Closed++
		} else {
			remaining := new(uint256.Int).Sub(lot.Shares, consumed)
			usd := lot.USDValue.Mul(toDecimal(remaining)).Div(toDecimal(lot.Shares))
			if err = l.positions.ReduceShares(ctx, lot.DepositID, lot.Shares, remaining, usd); err != nil {
				return nil, fmt.Errorf("can't reduce position %s: %w", lot.DepositID, err)
			}
			res.ReleasedUSD = res.ReleasedUSD.Add(lot.USDValue.Sub(usd))
			res.Reduced++
		}
		res.Consumed.Add(res.Consumed, consumed)
		left.Sub(left, consumed)
	}
	res.Unmatched = left
	return res, nil
}

// ApplyTransfer moves shares between users: the sender's lots are consumed as
// in a withdrawal, and the receiver gets a new lot valued at the released USD,
// extrapolated to the transferred amount when the sender's lots did not cover it.
func (l *Ledger) ApplyTransfer(ctx context.Context, from, to, vault common.Address, shares *uint256.Int, timestamp time.Time, depositID string) (*WithdrawalResult, error) {
	if shares.IsZero() || from == to {
		return nil, nil
	}
	var res *WithdrawalResult
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = l.ApplyWithdrawal(ctx, from, vault, shares, decimal.Zero, timestamp)
		if err != nil {
			return fmt.Errorf("can't withdraw from sender: %w", err)
		}
		usd := decimal.Zero
		if !res.Consumed.IsZero() {
			usd = res.ReleasedUSD.Mul(toDecimal(shares)).Div(toDecimal(res.Consumed))
		}
		if err = l.ApplyDeposit(ctx, to, vault, shares, usd, timestamp, depositID); err != nil {
			return fmt.Errorf("can't deposit to receiver: %w", err)
		}
		return nil
	})
	return res, err
}

// SettleAll accrues every active position up to upto. Each position is settled
// in its own transaction from a fresh read, so positions changed or closed
// concurrently are handled from their latest state.
func (l *Ledger) SettleAll(ctx context.Context, upto time.Time) (*SettleResult, error) {
	positions, err := l.positions.FindAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't load active positions: %w", err)
	}
	res := &SettleResult{Positions: len(positions), Points: decimal.Zero}
	for _, p := range positions {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if rewards.ElapsedHours(p.LastRewardTimestamp, upto) <= 0 {
			continue
		}
		points, err := l.settle(ctx, p, upto)
		if err != nil {
			return res, err
		}
		if points.IsPositive() {
			res.Settled++
			res.Points = res.Points.Add(points)
		}
	}
	l.logger.WithFields(logrus.Fields{
		"positions": res.Positions,
		"settled":   res.Settled,
		"points":    res.Points,
		"upto":      upto,
	}).Info("settled lp rewards")
	return res, nil
}

func (l *Ledger) settle(ctx context.Context, p *entity.Position, upto time.Time) (decimal.Decimal, error) {
	points := decimal.Zero
	err := l.tx.RunInTx(ctx, func(ctx context.Context) error {
		defer l.locks.Lock(positionKey{user: p.User, vault: p.Vault})()
		fresh, err := l.positions.GetByDepositID(ctx, p.DepositID)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		points, err = l.engine.Accrue(ctx, fresh, upto)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("can't settle position %s: %w", p.DepositID, err)
	}
	return points, nil
}
