package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type checkpointsRepo basePostgresRepo

func NewCheckpointsRepo(table string, db *db.DB) entity.CheckpointsRepo {
	return (*checkpointsRepo)(newBasePostgresRepo(table, db))
}

func (r *checkpointsRepo) Save(ctx context.Context, addr common.Address, aggType entity.AggregationType, block uint) error {
	q, args, err := sq.Insert(r.table).
		Columns("address", "aggregation_type", "last_block").
		Values(addr, aggType, block).
		Suffix(fmt.Sprintf("ON CONFLICT (address, aggregation_type) DO UPDATE SET updated_at = NOW(), last_block = EXCLUDED.last_block WHERE %s < EXCLUDED.last_block",
			(*basePostgresRepo)(r).column("last_block"))).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't save checkpoint: %w", err)
	}
	return nil
}

func (r *checkpointsRepo) Get(ctx context.Context, addr common.Address, aggType entity.AggregationType) (*entity.Checkpoint, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"address": addr, "aggregation_type": aggType}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	checkpoint := new(entity.Checkpoint)
	err = r.db.GetContext(ctx, checkpoint, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get checkpoint by address and aggregation type: %w", err)
	}
	return checkpoint, nil
}

func (r *checkpointsRepo) FindAll(ctx context.Context) ([]*entity.Checkpoint, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		OrderBy("address", "aggregation_type").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	checkpoints := make([]*entity.Checkpoint, 0, 10)
	err = r.db.SelectContext(ctx, &checkpoints, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get checkpoints: %w", err)
	}
	return checkpoints, nil
}

func (r *checkpointsRepo) FindByAddresses(ctx context.Context, addrs []common.Address) ([]*entity.Checkpoint, error) {
	raw := make([][]byte, len(addrs))
	for i, addr := range addrs {
		raw[i] = addr.Bytes()
	}
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Expr("address = ANY(?)", pq.Array(raw))).
		OrderBy("address", "aggregation_type").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	checkpoints := make([]*entity.Checkpoint, 0, len(addrs))
	err = r.db.SelectContext(ctx, &checkpoints, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get checkpoints by addresses: %w", err)
	}
	return checkpoints, nil
}
