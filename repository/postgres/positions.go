package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type positionsRepo basePostgresRepo

func NewPositionsRepo(table string, db *db.DB) entity.PositionsRepo {
	return (*positionsRepo)(newBasePostgresRepo(table, db))
}

func (r *positionsRepo) Create(ctx context.Context, position *entity.Position) error {
	q, args, err := sq.Insert(r.table).
		Columns("deposit_id", "user_address", "vault_address", "share_amount", "usd_value", "deposit_timestamp", "last_reward_timestamp").
		Values(position.DepositID, position.User, position.Vault, position.Shares, position.USDValue, position.DepositTimestamp, position.LastRewardTimestamp).
		Suffix("ON CONFLICT (deposit_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert position: %w", err)
	}
	return nil
}

func (r *positionsRepo) GetByDepositID(ctx context.Context, depositID string) (*entity.Position, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"deposit_id": depositID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	position := new(entity.Position)
	err = r.db.GetContext(ctx, position, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get position by deposit id: %w", err)
	}
	return position, nil
}

func (r *positionsRepo) find(ctx context.Context, where interface{}) ([]*entity.Position, error) {
	b := sq.Select("*").From(r.table)
	if where != nil {
		b = b.Where(where)
	}
	q, args, err := b.
		OrderBy("deposit_timestamp", "deposit_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	positions := make([]*entity.Position, 0, 10)
	err = r.db.SelectContext(ctx, &positions, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get positions: %w", err)
	}
	return positions, nil
}

func (r *positionsRepo) FindActive(ctx context.Context, user, vault common.Address) ([]*entity.Position, error) {
	return r.find(ctx, sq.Eq{"user_address": user, "vault_address": vault})
}

func (r *positionsRepo) FindAllActive(ctx context.Context) ([]*entity.Position, error) {
	return r.find(ctx, nil)
}

func (r *positionsRepo) FindByUser(ctx context.Context, user common.Address) ([]*entity.Position, error) {
	return r.find(ctx, sq.Eq{"user_address": user})
}

func (r *positionsRepo) AdvanceRewardClock(ctx context.Context, depositID string, from, to time.Time) error {
	return r.update(ctx, sq.Update(r.table).
		Set("last_reward_timestamp", to).
		Where(sq.Eq{"deposit_id": depositID, "last_reward_timestamp": from}))
}

func (r *positionsRepo) ReduceShares(ctx context.Context, depositID string, from, to *uint256.Int, usdValue decimal.Decimal) error {
	return r.update(ctx, sq.Update(r.table).
		Set("share_amount", to).
		Set("usd_value", usdValue).
		Where(sq.Eq{"deposit_id": depositID, "share_amount": from}))
}

func (r *positionsRepo) update(ctx context.Context, b sq.UpdateBuilder) error {
	q, args, err := b.
		Set("updated_at", sq.Expr("NOW()")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update position: %w", err)
	}
	return expectAffected(res)
}

func (r *positionsRepo) Delete(ctx context.Context, depositID string, shares *uint256.Int) error {
	q, args, err := sq.Delete(r.table).
		Where(sq.Eq{"deposit_id": depositID, "share_amount": shares}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't delete position: %w", err)
	}
	return expectAffected(res)
}
