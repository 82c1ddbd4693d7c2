package alerts

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/db"
)

type DBAlertsProvider struct {
	db *db.DB
}

func NewDBAlertsProvider(db *db.DB) *DBAlertsProvider {
	return &DBAlertsProvider{
		db: db,
	}
}

type StaleCheckpoint struct {
	Address         common.Address `db:"address" json:"address"`
	AggregationType string         `db:"aggregation_type" json:"aggregation_type"`
	LastBlock       uint64         `db:"last_block" json:"last_block,string"`
	Age             int64          `db:"age" json:"_value,string"`
}

// FindStaleCheckpoints reports checkpoints that were not advanced within the threshold.
func (p *DBAlertsProvider) FindStaleCheckpoints(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("c.address", "c.aggregation_type", "c.last_block", "EXTRACT(EPOCH FROM now() - c.updated_at)::bigint as age").
		From("checkpoints c").
		Where(sq.Lt{"c.updated_at": time.Now().Add(-params.Threshold)}).
		OrderBy("c.address", "c.aggregation_type").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]StaleCheckpoint, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}

type LaggingRewards struct {
	Vault common.Address `db:"vault_address" json:"vault_address"`
	Count uint64         `db:"count" json:"count,string"`
	Lag   int64          `db:"lag" json:"_value,string"`
}

// FindLaggingRewards reports vaults holding positions whose reward clock fell
// behind by more than the threshold.
func (p *DBAlertsProvider) FindLaggingRewards(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := sq.Select("p.vault_address", "count(*) as count", "EXTRACT(EPOCH FROM now() - min(p.last_reward_timestamp))::bigint as lag").
		From("positions p").
		Where(sq.Lt{"p.last_reward_timestamp": time.Now().Add(-params.Threshold)}).
		GroupBy("p.vault_address").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]LaggingRewards, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}
