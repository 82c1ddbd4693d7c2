package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type feeCollectionsRepo basePostgresRepo

func NewFeeCollectionsRepo(table string, db *db.DB) entity.FeeCollectionsRepo {
	return (*feeCollectionsRepo)(newBasePostgresRepo(table, db))
}

func (r *feeCollectionsRepo) Ensure(ctx context.Context, fee *entity.FeeCollection) error {
	q, args, err := sq.Insert(r.table).
		Columns("event_id", "vault_address", "token_address", "amount", "block_number", "transaction_hash", "timestamp").
		Values(fee.EventID, fee.Vault, fee.Token, fee.Amount, fee.BlockNumber, fee.TransactionHash, fee.Timestamp).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert fee collection: %w", err)
	}
	return nil
}

func (r *feeCollectionsRepo) FindByVault(ctx context.Context, vault common.Address, limit uint) ([]*entity.FeeCollection, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"vault_address": vault}).
		OrderBy("block_number DESC", "event_id").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	fees := make([]*entity.FeeCollection, 0, limit)
	err = r.db.SelectContext(ctx, &fees, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get fee collections by vault: %w", err)
	}
	return fees, nil
}
