package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type FeeCollection struct {
	EventID         string         `db:"event_id"`
	Vault           common.Address `db:"vault_address"`
	Token           common.Address `db:"token_address"`
	Amount          *uint256.Int   `db:"amount"`
	BlockNumber     uint           `db:"block_number"`
	TransactionHash common.Hash    `db:"transaction_hash"`
	Timestamp       time.Time      `db:"timestamp"`
	CreatedAt       *time.Time     `db:"created_at"`
}

type FeeCollectionsRepo interface {
	Ensure(ctx context.Context, fee *FeeCollection) error
	FindByVault(ctx context.Context, vault common.Address, limit uint) ([]*FeeCollection, error)
}
