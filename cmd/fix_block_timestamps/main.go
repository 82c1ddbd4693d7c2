package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/chain"
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/ethclient"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/repository"
)

var configPath = flag.String("config", "config.yml", "path to the config file")

// Drops cached block timestamps nothing refers to and refetches the ones
// missing for processed events and checkpoints.
func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	dbConn, err := db.NewDB(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database")
	}
	defer dbConn.Close()

	if err = dbConn.Migrate(); err != nil {
		logger.WithError(err).Fatal("can't run database migrations")
	}

	repo := repository.NewRepo(dbConn)
	ctx := context.Background()

	query := `
DELETE
FROM block_timestamps bt
WHERE NOT exists(SELECT * FROM processed_events pe WHERE pe.block_number = bt.block_number)
  AND NOT exists(SELECT * FROM checkpoints c WHERE c.last_block = bt.block_number)`
	res, err := dbConn.ExecContext(ctx, query)
	if err != nil {
		logger.WithError(err).Fatal("can't delete unneeded data points")
	}
	n, _ := res.RowsAffected()
	logger.WithField("count", n).Info("deleted unneeded block_timestamps records")

	query = `
SELECT DISTINCT block_number
FROM (SELECT block_number FROM processed_events UNION SELECT last_block FROM checkpoints) blocks
WHERE NOT exists(SELECT * FROM block_timestamps bt WHERE bt.block_number = blocks.block_number)
ORDER BY block_number`
	blocks := make([]uint, 0, 10)
	if err = dbConn.SelectContext(ctx, &blocks, query); err != nil {
		logger.WithError(err).Fatal("can't select blocks with missing timestamps")
	}
	logger.WithField("count", len(blocks)).Info("found blocks without associated block timestamp")

	client, err := ethclient.NewClient(cfg.Chain.RPC, cfg.Chain.ChainID)
	if err != nil {
		logger.WithError(err).Fatal("can't dial chain json rpc")
	}
	source := chain.NewRPCSource(logger, client, repo.BlockTimestamps)
	for i, block := range blocks {
		if i%50 == 0 {
			logger.WithFields(logrus.Fields{
				"current": i,
				"total":   len(blocks),
			}).Info("processing block_timestamp")
		}
		if _, err = source.GetBlockTimestamp(ctx, block); err != nil {
			logger.WithField("block_number", block).WithError(err).Fatal("can't fetch block timestamp")
		}
	}
}
