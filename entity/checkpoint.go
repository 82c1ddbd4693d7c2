package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Checkpoint struct {
	Address         common.Address  `db:"address"`
	AggregationType AggregationType `db:"aggregation_type"`
	LastBlock       uint            `db:"last_block"`
	CreatedAt       *time.Time      `db:"created_at"`
	UpdatedAt       *time.Time      `db:"updated_at"`
}

type CheckpointsRepo interface {
	// Save stores block as the checkpoint unless the stored one is already >= block.
	Save(ctx context.Context, addr common.Address, aggType AggregationType, block uint) error
	Get(ctx context.Context, addr common.Address, aggType AggregationType) (*Checkpoint, error)
	FindAll(ctx context.Context) ([]*Checkpoint, error)
	FindByAddresses(ctx context.Context, addrs []common.Address) ([]*Checkpoint, error)
}
