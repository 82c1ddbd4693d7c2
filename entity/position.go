package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Position is a single deposit lot with its own share count and reward clock.
type Position struct {
	DepositID           string          `db:"deposit_id"`
	User                common.Address  `db:"user_address"`
	Vault               common.Address  `db:"vault_address"`
	Shares              *uint256.Int    `db:"share_amount"`
	USDValue            decimal.Decimal `db:"usd_value"`
	DepositTimestamp    time.Time       `db:"deposit_timestamp"`
	LastRewardTimestamp time.Time       `db:"last_reward_timestamp"`
	CreatedAt           *time.Time      `db:"created_at"`
	UpdatedAt           *time.Time      `db:"updated_at"`
}

func (p *Position) Clone() *Position {
	res := *p
	res.Shares = new(uint256.Int).Set(p.Shares)
	return &res
}

// PositionsRepo mutations are optimistic: they fail with db.ErrConflict when
// the stored row no longer holds the expected value.
type PositionsRepo interface {
	Create(ctx context.Context, position *Position) error
	GetByDepositID(ctx context.Context, depositID string) (*Position, error)
	// FindActive returns positions of the user in the vault, oldest deposit first.
	FindActive(ctx context.Context, user, vault common.Address) ([]*Position, error)
	FindAllActive(ctx context.Context) ([]*Position, error)
	FindByUser(ctx context.Context, user common.Address) ([]*Position, error)
	AdvanceRewardClock(ctx context.Context, depositID string, from, to time.Time) error
	ReduceShares(ctx context.Context, depositID string, from, to *uint256.Int, usdValue decimal.Decimal) error
	Delete(ctx context.Context, depositID string, shares *uint256.Int) error
}
