package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type rewardsConversionsRepo basePostgresRepo

func NewRewardsConversionsRepo(table string, db *db.DB) entity.RewardsConversionsRepo {
	return (*rewardsConversionsRepo)(newBasePostgresRepo(table, db))
}

func (r *rewardsConversionsRepo) Ensure(ctx context.Context, conversion *entity.RewardsConversion) error {
	q, args, err := sq.Insert(r.table).
		Columns("event_id", "vault_address", "reward_token_address", "amount_in", "amount_out", "block_number", "transaction_hash", "timestamp").
		Values(conversion.EventID, conversion.Vault, conversion.RewardToken, conversion.AmountIn, conversion.AmountOut,
			conversion.BlockNumber, conversion.TransactionHash, conversion.Timestamp).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert rewards conversion: %w", err)
	}
	return nil
}

func (r *rewardsConversionsRepo) FindByVault(ctx context.Context, vault common.Address, limit uint) ([]*entity.RewardsConversion, error) {
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
	conversions := make([]*entity.RewardsConversion, 0, limit)
	err = r.db.SelectContext(ctx, &conversions, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get rewards conversions by vault: %w", err)
	}
	return conversions, nil
}
