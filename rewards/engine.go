package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/utils"
)

// Engine accrues LP points for whole elapsed hours only. The fractional
// remainder stays on the position's reward clock for the next accrual.
type Engine struct {
	logger    logging.Logger
	rate      decimal.Decimal
	positions entity.PositionsRepo
	points    entity.UserPointsRepo
}

func NewEngine(logger logging.Logger, rate decimal.Decimal, positions entity.PositionsRepo, points entity.UserPointsRepo) *Engine {
	return &Engine{
		logger:    logger,
		rate:      rate,
		positions: positions,
		points:    points,
	}
}

func (e *Engine) Rate() decimal.Decimal {
	return e.rate
}

// ElapsedHours is floor((upto - from) / 1h), or 0 if upto is not after from.
func ElapsedHours(from, upto time.Time) int64 {
	d := upto.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Hour)
}

func Compute(usdValue, rate decimal.Decimal, hours int64) decimal.Decimal {
	if hours <= 0 {
		return decimal.Zero
	}
	return usdValue.Mul(rate).Mul(decimal.NewFromInt(hours))
}

// Accrue credits the position owner for the whole hours between the position's
// reward clock and upto, and moves the clock forward by exactly that many hours.
// It must run inside a transaction, with the position's (user, vault) key held.
// The position is updated in place.
func (e *Engine) Accrue(ctx context.Context, position *entity.Position, upto time.Time) (decimal.Decimal, error) {
	hours := ElapsedHours(position.LastRewardTimestamp, upto)
	if hours <= 0 {
		return decimal.Zero, nil
	}
	points := Compute(position.USDValue, e.rate, hours)
	clock := position.LastRewardTimestamp.Add(time.Duration(hours) * time.Hour)

	if err := e.positions.AdvanceRewardClock(ctx, position.DepositID, position.LastRewardTimestamp, clock); err != nil {
		return decimal.Zero, fmt.Errorf("can't advance reward clock of %s: %w", position.DepositID, err)
	}
	if points.IsPositive() {
		if err := e.points.Increment(ctx, position.User, points, entity.PointsCategoryLP); err != nil {
			return decimal.Zero, fmt.Errorf("can't credit lp points: %w", err)
		}
	}
	position.LastRewardTimestamp = clock

	logger := e.logger.WithFields(logrus.Fields{
		"deposit_id": position.DepositID,
		"user":       position.User,
		"hours":      hours,
		"points":     points,
		"clock":      clock,
	})
	utils.AfterCommit(ctx, func() {
		PointsCredited.WithLabelValues(string(entity.PointsCategoryLP)).Add(points.InexactFloat64())
		logger.Debug("accrued lp points")
	})
	return points, nil
}
