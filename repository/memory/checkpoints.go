package memory

import (
	"bytes"
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type checkpointsRepo Store

func (r *checkpointsRepo) Save(ctx context.Context, addr common.Address, aggType entity.AggregationType, block uint) error {
	return (*Store)(r).write(ctx, func(data *state) error {
		key := checkpointKey{addr: addr, aggType: aggType}
		if cur, ok := data.checkpoints[key]; ok && cur.LastBlock >= block {
			return nil
		}
		data.checkpoints[key] = entity.Checkpoint{Address: addr, AggregationType: aggType, LastBlock: block}
		return nil
	})
}

func (r *checkpointsRepo) Get(_ context.Context, addr common.Address, aggType entity.AggregationType) (*entity.Checkpoint, error) {
	var res *entity.Checkpoint
	(*Store)(r).read(func(data *state) {
		if cur, ok := data.checkpoints[checkpointKey{addr: addr, aggType: aggType}]; ok {
			res = &cur
		}
	})
	if res == nil {
		return nil, db.ErrNotFound
	}
	return res, nil
}

func (r *checkpointsRepo) FindAll(_ context.Context) ([]*entity.Checkpoint, error) {
	return r.find(func(*entity.Checkpoint) bool { return true }), nil
}

func (r *checkpointsRepo) FindByAddresses(_ context.Context, addrs []common.Address) ([]*entity.Checkpoint, error) {
	set := make(map[common.Address]bool, len(addrs))
	for _, addr := range addrs {
		set[addr] = true
	}
	return r.find(func(c *entity.Checkpoint) bool { return set[c.Address] }), nil
}

func (r *checkpointsRepo) find(filter func(*entity.Checkpoint) bool) []*entity.Checkpoint {
	res := make([]*entity.Checkpoint, 0, 10)
	(*Store)(r).read(func(data *state) {
		for _, c := range data.checkpoints {
			c := c
			if filter(&c) {
				res = append(res, &c)
			}
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if cmp := bytes.Compare(res[i].Address[:], res[j].Address[:]); cmp != 0 {
			return cmp < 0
		}
		return res[i].AggregationType < res[j].AggregationType
	})
	return res
}
