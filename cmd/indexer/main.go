package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/omni/points-indexer/alerts"
	"github.com/omni/points-indexer/chain"
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/ethclient"
	"github.com/omni/points-indexer/indexer"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/presenter"
	"github.com/omni/points-indexer/pricing"
	"github.com/omni/points-indexer/repository"
)

var configPath = flag.String("config", "config.yml", "path to the config file")

func main() {
	flag.Parse()

	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	dbConn, err := db.ConnectToDBAndMigrate(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database and apply migrations")
	}
	defer dbConn.Close()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), repo, cfg)
		g.Go(func() error {
			return pr.Serve(ctx, cfg.Presenter.Host)
		})
	}
	g.Go(func() error {
		return ix.Run(ctx)
	})
	if len(cfg.Alerts) > 0 {
		am, err := alerts.NewAlertManager(logger.WithField("service", "alerts"), alerts.NewDBAlertsProvider(dbConn), cfg)
		if err != nil {
			logger.WithError(err).Fatal("can't initialize alert manager")
		}
		go am.Start(ctx, ix.Synced)
	}

	err = g.Wait()
	if errors.Is(err, indexer.ErrTooManyFailures) {
		logger.WithError(err).Fatal("indexer gave up")
	}
	if err != nil {
		logger.WithError(err).Fatal("service stopped with error")
	}
	logger.Warn("gracefully terminated")
}
