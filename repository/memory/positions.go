package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type positionsRepo Store

func (r *positionsRepo) Create(ctx context.Context, position *entity.Position) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		if _, ok := data.positions[position.DepositID]; !ok {
			data.positions[position.DepositID] = position.Clone()
		}
		return nil
	})
}

func (r *positionsRepo) GetByDepositID(_ context.Context, depositID string) (*entity.Position, error) {
	var res *entity.Position
	(*Store)(r).read(func(data *state) {
		if p, ok := data.positions[depositID]; ok {
			res = p.Clone()
		}
	})
	if res == nil {
		return nil, db.ErrNotFound
	}
	return res, nil
}

func (r *positionsRepo) FindActive(_ context.Context, user, vault common.Address) ([]*entity.Position, error) {
	return r.find(func(p *entity.Position) bool { return p.User == user && p.Vault == vault }), nil
}

func (r *positionsRepo) FindAllActive(_ context.Context) ([]*entity.Position, error) {
	return r.find(func(*entity.Position) bool { return true }), nil
}

func (r *positionsRepo) FindByUser(_ context.Context, user common.Address) ([]*entity.Position, error) {
	return r.find(func(p *entity.Position) bool { return p.User == user }), nil
}

func (r *positionsRepo) find(filter func(*entity.Position) bool) []*entity.Position {
	res := make([]*entity.Position, 0, 10)
	(*Store)(r).read(func(data *state) {
		for _, p := range data.positions {
			if filter(p) {
				res = append(res, p.Clone())
			}
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if !res[i].DepositTimestamp.Equal(res[j].DepositTimestamp) {
			return res[i].DepositTimestamp.Before(res[j].DepositTimestamp)
		}
		return res[i].DepositID < res[j].DepositID
	})
	return res
}

func (r *positionsRepo) AdvanceRewardClock(ctx context.Context, depositID string, from, to time.Time) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		p, ok := data.positions[depositID]
		if !ok || !p.LastRewardTimestamp.Equal(from) {
			return db.ErrConflict
		}
		p.LastRewardTimestamp = to
		return nil
	})
}

func (r *positionsRepo) ReduceShares(ctx context.Context, depositID string, from, to *uint256.Int, usdValue decimal.Decimal) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		p, ok := data.positions[depositID]
		if !ok || !p.Shares.Eq(from) {
			return db.ErrConflict
		}
		p.Shares = new(uint256.Int).Set(to)
		p.USDValue = usdValue
		return nil
	})
}

func (r *positionsRepo) Delete(ctx context.Context, depositID string, shares *uint256.Int) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		p, ok := data.positions[depositID]
		if !ok || !p.Shares.Eq(shares) {
			return db.ErrConflict
		}
		delete(data.positions, depositID)
		return nil
	})
}
