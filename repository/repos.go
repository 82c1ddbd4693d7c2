package repository

import (
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/repository/postgres"
)

type Repo struct {
	Tx                 entity.Transactor
	Checkpoints        entity.CheckpointsRepo
	ProcessedEvents    entity.ProcessedEventsRepo
	Positions          entity.PositionsRepo
	UserPoints         entity.UserPointsRepo
	BlockTimestamps    entity.BlockTimestampsRepo
	FeeCollections     entity.FeeCollectionsRepo
	RewardsConversions entity.RewardsConversionsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Tx:                 db,
		Checkpoints:        postgres.NewCheckpointsRepo("checkpoints", db),
		ProcessedEvents:    postgres.NewProcessedEventsRepo("processed_events", db),
		Positions:          postgres.NewPositionsRepo("positions", db),
		UserPoints:         postgres.NewUserPointsRepo("user_points", db),
		BlockTimestamps:    postgres.NewBlockTimestampsRepo("block_timestamps", db),
		FeeCollections:     postgres.NewFeeCollectionsRepo("fee_collections", db),
		RewardsConversions: postgres.NewRewardsConversionsRepo("rewards_conversions", db),
	}
}
