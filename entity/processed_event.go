package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ProcessedEvent struct {
	AggregationType AggregationType `db:"aggregation_type"`
	EventID         string          `db:"event_id"`
	BlockNumber     uint            `db:"block_number"`
	TransactionHash common.Hash     `db:"transaction_hash"`
	LogIndex        uint            `db:"log_index"`
	CreatedAt       *time.Time      `db:"created_at"`
}

type ProcessedEventsRepo interface {
	Exists(ctx context.Context, aggType AggregationType, eventID string) (bool, error)
	// Save treats an already recorded event as success.
	Save(ctx context.Context, event *ProcessedEvent) error
}
