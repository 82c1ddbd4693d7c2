package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type userPointsRepo basePostgresRepo

func NewUserPointsRepo(table string, db *db.DB) entity.UserPointsRepo {
	return (*userPointsRepo)(newBasePostgresRepo(table, db))
}

func (r *userPointsRepo) Increment(ctx context.Context, user common.Address, delta decimal.Decimal, category entity.PointsCategory) error {
	lp, merger := decimal.Zero, decimal.Zero
	switch category {
	case entity.PointsCategoryLP:
		lp = delta
	case entity.PointsCategoryMerger:
		merger = delta
	default:
		return fmt.Errorf("unknown points category %q", category)
	}
	base := (*basePostgresRepo)(r)
	q, args, err := sq.Insert(r.table).
		Columns("user_address", "lp_points", "merger_points", "total_points").
		Values(user, lp, merger, delta).
		Suffix(fmt.Sprintf("ON CONFLICT (user_address) DO UPDATE SET updated_at = NOW(), "+
			"lp_points = %s + EXCLUDED.lp_points, "+
			"merger_points = %s + EXCLUDED.merger_points, "+
			"total_points = %s + EXCLUDED.total_points",
			base.column("lp_points"), base.column("merger_points"), base.column("total_points"))).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't increment user points: %w", err)
	}
	return nil
}

func (r *userPointsRepo) GetByUser(ctx context.Context, user common.Address) (*entity.UserPoints, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"user_address": user}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	points := new(entity.UserPoints)
	err = r.db.GetContext(ctx, points, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get user points: %w", err)
	}
	return points, nil
}

func (r *userPointsRepo) FindTop(ctx context.Context, limit uint) ([]*entity.UserPoints, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		OrderBy("total_points DESC", "user_address").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	points := make([]*entity.UserPoints, 0, limit)
	err = r.db.SelectContext(ctx, &points, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get top user points: %w", err)
	}
	return points, nil
}
