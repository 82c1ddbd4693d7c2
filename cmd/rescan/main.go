package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/chain"
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/ethclient"
	"github.com/omni/points-indexer/indexer"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/pricing"
	"github.com/omni/points-indexer/repository"
)

var (
	configPath = flag.String("config", "config.yml", "path to the config file")
	job        = flag.String("job", "", "scan job to rescan (lp, fees, rewards_conversion, merge)")
	fromBlock  = flag.Uint("fromBlock", 0, "starting block")
	toBlock    = flag.Uint("toBlock", 0, "ending block, clamped to the job checkpoints")
	settle     = flag.Bool("settle", false, "settle lp rewards up to the rewards horizon afterwards")
)

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	if *job == "" {
		logger.Fatal("job is not specified")
	}
	if *toBlock == 0 {
		logger.Fatal("toBlock is not specified")
	}
	if *toBlock < *fromBlock {
		logger.WithFields(logrus.Fields{
			"from_block": *fromBlock,
			"to_block":   *toBlock,
		}).Fatal("toBlock < fromBlock")
	}

	dbConn, err := db.NewDB(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database")
	}
	defer dbConn.Close()

	if err = dbConn.Migrate(); err != nil {
		logger.WithError(err).Fatal("can't run database migrations")
	}

	client, err := ethclient.NewClient(cfg.Chain.RPC, cfg.Chain.ChainID)
	if err != nil {
		logger.WithError(err).Fatal("can't dial rpc client")
	}

	repo := repository.NewRepo(dbConn)
	source := chain.NewRPCSource(logger.WithField("service", "chain"), client, repo.BlockTimestamps)
	ix, err := indexer.New(logger.WithField("service", "indexer"), cfg, repo, source, pricing.NewStaticOracle(cfg.Contracts))
	if err != nil {
		logger.WithError(err).Fatal("can't initialize indexer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := ix.ScanRange(ctx, *job, *fromBlock, *toBlock)
	if err != nil {
		logger.WithError(err).Fatal("can't rescan block range")
	}
	logger.WithFields(logrus.Fields{
		"job":        *job,
		"from_block": res.FromBlock,
		"to_block":   res.ToBlock,
		"windows":    res.Windows,
		"logs":       res.Logs,
		"applied":    res.Applied,
		"skipped":    res.Skipped,
	}).Info("rescanned block range")

	if *settle {
		settled, err := ix.SettleRewards(ctx)
		if err != nil {
			logger.WithError(err).Fatal("can't settle rewards")
		}
		if settled != nil {
			logger.WithFields(logrus.Fields{
				"settled": settled.Settled,
				"points":  settled.Points,
			}).Info("settled rewards")
		}
	}
}
