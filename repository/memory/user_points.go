package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type userPointsRepo Store

func (r *userPointsRepo) Increment(ctx context.Context, user common.Address, delta decimal.Decimal, category entity.PointsCategory) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		acc, ok := data.userPoints[user]
		if !ok {
			acc = entity.UserPoints{User: user}
		}
		switch category {
		case entity.PointsCategoryLP:
			acc.LPPoints = acc.LPPoints.Add(delta)
		case entity.PointsCategoryMerger:
			acc.MergerPoints = acc.MergerPoints.Add(delta)
		default:
			return fmt.Errorf("unknown points category %q", category)
		}
		acc.TotalPoints = acc.TotalPoints.Add(delta)
		data.userPoints[user] = acc
		return nil
	})
}

func (r *userPointsRepo) GetByUser(_ context.Context, user common.Address) (*entity.UserPoints, error) {
	var res *entity.UserPoints
	(*Store)(r).read(func(data *state) {
		if acc, ok := data.userPoints[user]; ok {
			res = &acc
		}
	})
	if res == nil {
		return nil, db.ErrNotFound
	}
	return res, nil
}

func (r *userPointsRepo) FindTop(_ context.Context, limit uint) ([]*entity.UserPoints, error) {
	res := make([]*entity.UserPoints, 0, limit)
	(*Store)(r).read(func(data *state) {
		for _, acc := range data.userPoints {
			acc := acc
			res = append(res, &acc)
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if cmp := res[i].TotalPoints.Cmp(res[j].TotalPoints); cmp != 0 {
			return cmp > 0
		}
		return bytes.Compare(res[i].User[:], res[j].User[:]) < 0
	})
	if uint(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}
