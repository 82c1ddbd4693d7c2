package entity

import (
	"context"
	"time"
)

type BlockTimestamp struct {
	BlockNumber uint       `db:"block_number"`
	Timestamp   time.Time  `db:"timestamp"`
	CreatedAt   *time.Time `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

type BlockTimestampsRepo interface {
	Ensure(ctx context.Context, ts *BlockTimestamp) error
	GetByBlockNumber(ctx context.Context, blockNumber uint) (*BlockTimestamp, error)
}
