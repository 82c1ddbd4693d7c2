package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/cache"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/ethclient"
	"github.com/omni/points-indexer/logging"
)

const blockTimestampsTTL = 24 * time.Hour

// Source is the read side of the chain used by the indexer.
type Source interface {
	// GetLogs returns logs of the given topics emitted by addresses in [from, to],
	// sorted by block number and log index. In strict mode the node must be synced up to `to`.
	GetLogs(ctx context.Context, topics []common.Hash, from, to uint, addresses []common.Address, strict bool) ([]*entity.Log, error)
	GetBlockTimestamp(ctx context.Context, blockNumber uint) (time.Time, error)
	GetCurrentBlockNumber(ctx context.Context) (uint, error)
}

type RPCSource struct {
	logger     logging.Logger
	client     ethclient.Client
	timestamps entity.BlockTimestampsRepo
	cache      *cache.ReadThrough[uint, time.Time]
	headers    cache.Coalescer[time.Time]
	logs       cache.Coalescer[[]*entity.Log]
}

func NewRPCSource(logger logging.Logger, client ethclient.Client, timestamps entity.BlockTimestampsRepo) *RPCSource {
	s := &RPCSource{
		logger:     logger,
		client:     client,
		timestamps: timestamps,
	}
	s.cache = cache.NewReadThrough[uint, time.Time](blockTimestampsTTL, s.loadBlockTimestamp)
	return s
}

func (s *RPCSource) GetCurrentBlockNumber(ctx context.Context) (uint, error) {
	n, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("can't fetch latest block number: %w", err)
	}
	return n, nil
}

func (s *RPCSource) GetBlockTimestamp(ctx context.Context, blockNumber uint) (time.Time, error) {
	return s.cache.Get(ctx, blockNumber)
}

func (s *RPCSource) loadBlockTimestamp(ctx context.Context, blockNumber uint) (time.Time, error) {
	ts, err := s.timestamps.GetByBlockNumber(ctx, blockNumber)
	if err == nil {
		return ts.Timestamp.UTC(), nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return time.Time{}, fmt.Errorf("can't get block timestamp from db: %w", err)
	}
	return s.headers.Do(ctx, fmt.Sprintf("header:%d", blockNumber), func(ctx context.Context) (time.Time, error) {
		s.logger.WithField("block_number", blockNumber).Debug("fetching block timestamp")
		header, err := s.client.HeaderByNumber(ctx, blockNumber)
		if err != nil {
			return time.Time{}, fmt.Errorf("can't request block header: %w", err)
		}
		res := time.Unix(int64(header.Time), 0).UTC()
		err = s.timestamps.Ensure(ctx, &entity.BlockTimestamp{
			BlockNumber: blockNumber,
			Timestamp:   res,
		})
		if err != nil {
			return time.Time{}, fmt.Errorf("can't save block timestamp: %w", err)
		}
		return res, nil
	})
}

func (s *RPCSource) GetLogs(ctx context.Context, topics []common.Hash, from, to uint, addresses []common.Address, strict bool) ([]*entity.Log, error) {
	if from > to {
		return nil, nil
	}
	key := logsKey(topics, from, to, addresses, strict)
	return s.logs.Do(ctx, key, func(ctx context.Context) ([]*entity.Log, error) {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(uint64(from)),
			ToBlock:   new(big.Int).SetUint64(uint64(to)),
			Addresses: addresses,
			Topics:    [][]common.Hash{topics},
		}
		var raw []types.Log
		var err error
		if strict {
			raw, err = s.client.FilterLogsSafe(ctx, q)
		} else {
			raw, err = s.client.FilterLogs(ctx, q)
		}
		if err != nil {
			return nil, err
		}
		logs := make([]*entity.Log, 0, len(raw))
		for _, log := range raw {
			if log.Removed {
				continue
			}
			logs = append(logs, entity.NewLog(log))
		}
		SortLogs(logs)
		s.logger.WithFields(logrus.Fields{
			"count":      len(logs),
			"from_block": from,
			"to_block":   to,
		}).Debug("fetched logs in range")
		return logs, nil
	})
}

// SortLogs orders logs by block number, then by log index.
func SortLogs(logs []*entity.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Less(logs[j])
	})
}

func logsKey(topics []common.Hash, from, to uint, addresses []common.Address, strict bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "logs:%d-%d:%t", from, to, strict)
	for _, addr := range addresses {
		b.WriteString(":")
		b.WriteString(addr.Hex())
	}
	for _, topic := range topics {
		b.WriteString(":")
		b.WriteString(topic.Hex())
	}
	return b.String()
}
