package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type RewardsConversion struct {
	EventID         string         `db:"event_id"`
	Vault           common.Address `db:"vault_address"`
	RewardToken     common.Address `db:"reward_token_address"`
	AmountIn        *uint256.Int   `db:"amount_in"`
	AmountOut       *uint256.Int   `db:"amount_out"`
	BlockNumber     uint           `db:"block_number"`
	TransactionHash common.Hash    `db:"transaction_hash"`
	Timestamp       time.Time      `db:"timestamp"`
	CreatedAt       *time.Time     `db:"created_at"`
}

type RewardsConversionsRepo interface {
	Ensure(ctx context.Context, conversion *RewardsConversion) error
	FindByVault(ctx context.Context, vault common.Address, limit uint) ([]*RewardsConversion, error)
}
