package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type UserPoints struct {
	User         common.Address  `db:"user_address"`
	LPPoints     decimal.Decimal `db:"lp_points"`
	MergerPoints decimal.Decimal `db:"merger_points"`
	TotalPoints  decimal.Decimal `db:"total_points"`
	CreatedAt    *time.Time      `db:"created_at"`
	UpdatedAt    *time.Time      `db:"updated_at"`
}

type UserPointsRepo interface {
	// Increment atomically adds delta to the category and to the total,
	// creating the account on first credit.
	Increment(ctx context.Context, user common.Address, delta decimal.Decimal, category PointsCategory) error
	GetByUser(ctx context.Context, user common.Address) (*UserPoints, error)
	FindTop(ctx context.Context, limit uint) ([]*UserPoints, error)
}
