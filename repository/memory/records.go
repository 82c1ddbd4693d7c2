package memory

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type blockTimestampsRepo Store

func (r *blockTimestampsRepo) Ensure(ctx context.Context, ts *entity.BlockTimestamp) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		data.blockTimestamps[ts.BlockNumber] = *ts
		return nil
	})
}

func (r *blockTimestampsRepo) GetByBlockNumber(_ context.Context, blockNumber uint) (*entity.BlockTimestamp, error) {
	var res *entity.BlockTimestamp
	(*Store)(r).read(func(data *state) {
		if ts, ok := data.blockTimestamps[blockNumber]; ok {
			res = &ts
		}
	})
	if res == nil {
		return nil, db.ErrNotFound
	}
	return res, nil
}

type feeCollectionsRepo Store

func (r *feeCollectionsRepo) Ensure(ctx context.Context, fee *entity.FeeCollection) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		if _, ok := data.feeCollections[fee.EventID]; !ok {
			data.feeCollections[fee.EventID] = *fee
		}
		return nil
	})
}

func (r *feeCollectionsRepo) FindByVault(_ context.Context, vault common.Address, limit uint) ([]*entity.FeeCollection, error) {
	res := make([]*entity.FeeCollection, 0, limit)
	(*Store)(r).read(func(data *state) {
		for _, fee := range data.feeCollections {
			fee := fee
			if fee.Vault == vault {
				res = append(res, &fee)
			}
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if res[i].BlockNumber != res[j].BlockNumber {
			return res[i].BlockNumber > res[j].BlockNumber
		}
		return res[i].EventID < res[j].EventID
	})
	if uint(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

type rewardsConversionsRepo Store

func (r *rewardsConversionsRepo) Ensure(ctx context.Context, conversion *entity.RewardsConversion) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		if _, ok := data.rewardsConversions[conversion.EventID]; !ok {
			data.rewardsConversions[conversion.EventID] = *conversion
		}
		return nil
	})
}

func (r *rewardsConversionsRepo) FindByVault(_ context.Context, vault common.Address, limit uint) ([]*entity.RewardsConversion, error) {
	res := make([]*entity.RewardsConversion, 0, limit)
	(*Store)(r).read(func(data *state) {
		for _, conversion := range data.rewardsConversions {
			conversion := conversion
			if conversion.Vault == vault {
				res = append(res, &conversion)
			}
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if res[i].BlockNumber != res[j].BlockNumber {
			return res[i].BlockNumber > res[j].BlockNumber
		}
		return res[i].EventID < res[j].EventID
	})
	if uint(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}
