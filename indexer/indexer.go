package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/omni/points-indexer/chain"
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/contract/pointsabi"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/dispatcher"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/ledger"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/pricing"
	"github.com/omni/points-indexer/repository"
	"github.com/omni/points-indexer/rewards"
	"github.com/omni/points-indexer/scanner"
	"github.com/omni/points-indexer/utils"
)

const accrualJob = "accrual"

var (
	ErrTooManyFailures = errors.New("too many consecutive failures")
	ErrUnknownJob      = errors.New("unknown job")
)

type Indexer struct {
	logger     logging.Logger
	cfg        *config.Config
	repo       *repository.Repo
	source     chain.Source
	ledger     *ledger.Ledger
	dispatcher *dispatcher.Dispatcher
	scanners   []*scanner.Scanner

	sweepMu  sync.Mutex
	failMu   sync.Mutex
	failures map[string]int
	synced   atomic.Bool
}

func New(logger logging.Logger, cfg *config.Config, repo *repository.Repo, source chain.Source, oracle pricing.Oracle) (*Indexer, error) {
	engine := rewards.NewEngine(logger.WithField("component", "rewards"), cfg.Rewards.LPPointsPerUSDHour, repo.Positions, repo.UserPoints)
	l := ledger.New(logger.WithField("component", "ledger"), repo.Tx, repo.Positions, engine)
	d := dispatcher.New(logger.WithField("component", "dispatcher"), repo.Tx, repo.ProcessedEvents, source, pointsabi.EventsABI)

	handlers := NewEventHandler(logger.WithField("component", "handlers"), cfg, repo, l, oracle)
	d.RegisterEventHandler(pointsabi.Deposit, entity.AggregationDeposit, handlers.HandleDeposit)
	d.RegisterEventHandler(pointsabi.Withdraw, entity.AggregationWithdrawal, handlers.HandleWithdraw)
	d.RegisterEventHandler(pointsabi.Transfer, entity.AggregationTransfer, handlers.HandleTransfer)
	d.RegisterEventHandler(pointsabi.FeeCollected, entity.AggregationFeeCollected, handlers.HandleFeeCollected)
	d.RegisterEventHandler(pointsabi.RewardsConverted, entity.AggregationRewardsConverted, handlers.HandleRewardsConverted)
	d.RegisterEventHandler(pointsabi.Merged, entity.AggregationMerge, handlers.HandleMerged)
	if err := d.VerifyEventHandlersABI(); err != nil {
		return nil, fmt.Errorf("invalid event handlers: %w", err)
	}

	scanCfg := scanner.Config{
		MaxBlockRangeSize:  cfg.Sync.MaxBlockRangeSize,
		BlockConfirmations: cfg.Sync.BlockConfirmations,
		SafeLogsRequest:    cfg.Chain.SafeLogsRequest,
		Retry: utils.RetryConfig{
			Attempts:  cfg.Sync.Retry.Attempts,
			BaseDelay: cfg.Sync.Retry.BaseDelay,
			MaxDelay:  cfg.Sync.Retry.MaxDelay,
			Jitter:    cfg.Sync.Retry.Jitter,
		},
	}
	jobs := BuildJobs(cfg)
	scanners := make([]*scanner.Scanner, len(jobs))
	for i, job := range jobs {
		scanners[i] = scanner.New(logger.WithField("component", "scanner"), scanCfg, job, source, repo.Checkpoints, d)
	}
	return &Indexer{
		logger:     logger,
		cfg:        cfg,
		repo:       repo,
		source:     source,
		ledger:     l,
		dispatcher: d,
		scanners:   scanners,
		failures:   make(map[string]int, len(scanners)+1),
	}, nil
}

func (ix *Indexer) Scanner(job string) (*scanner.Scanner, error) {
	for _, s := range ix.scanners {
		if s.Job().Name == job {
			return s, nil
		}
	}
	return nil, fmt.Errorf("job %q is not configured: %w", job, ErrUnknownJob)
}

// Run performs a catch-up sweep and then sweeps on the configured schedule
// until ctx is done or a job fails too many times in a row.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.logger.WithField("jobs", len(ix.scanners)).Info("starting indexer")
	if err := ix.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, ErrTooManyFailures) {
			return err
		}
		ix.logger.WithError(err).Error("startup sweep failed")
	}

	fatal := make(chan error, 1)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{ix.logger})), cron.WithLogger(cronLogger{ix.logger}))
	_, err := c.AddFunc(ix.cfg.Sync.Schedule, func() {
		err := ix.Sweep(ctx)
		if errors.Is(err, ErrTooManyFailures) {
			select {
			case fatal <- err:
			default:
			}
		} else if err != nil && ctx.Err() == nil {
			ix.logger.WithError(err).Error("scheduled sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", ix.cfg.Sync.Schedule, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	select {
	case <-ctx.Done():
		ix.logger.Info("stopping indexer")
		return nil
	case err = <-fatal:
		return err
	}
}

// Sweep scans all jobs concurrently and then settles lp rewards up to the
// rewards horizon. Failures are counted per job; a job failing more than
// max_consecutive_failures times in a row makes Sweep return ErrTooManyFailures.
func (ix *Indexer) Sweep(ctx context.Context) error {
	ix.sweepMu.Lock()
	defer ix.sweepMu.Unlock()
	defer prometheusTimer()()

	var errsMu sync.Mutex
	var errs []error
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range ix.scanners {
		s := s
		g.Go(func() error {
			res, err := s.Scan(gctx)
			if err == nil {
				ix.logger.WithFields(logrus.Fields{
					"job":        s.Job().Name,
					"from_block": res.FromBlock,
					"to_block":   res.ToBlock,
					"windows":    res.Windows,
					"applied":    res.Applied,
				}).Info("scan job finished")
			}
			if fatal := ix.observe(s.Job().Name, err); fatal != nil {
				return fatal
			}
			if err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("job %s: %w", s.Job().Name, err))
				errsMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.synced.Store(false)
		return err
	}

	_, err := ix.SettleRewards(ctx)
	if fatal := ix.observe(accrualJob, err); fatal != nil {
		ix.synced.Store(false)
		return fatal
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("job %s: %w", accrualJob, err))
	}
	ix.synced.Store(len(errs) == 0)
	return errors.Join(errs...)
}

// Synced reports whether the last sweep completed without errors.
func (ix *Indexer) Synced() bool {
	return ix.synced.Load()
}

func (ix *Indexer) observe(job string, err error) error {
	ix.failMu.Lock()
	defer ix.failMu.Unlock()
	if err == nil {
		ix.failures[job] = 0
		ConsecutiveFailures.WithLabelValues(job).Set(0)
		return nil
	}
	ix.failures[job]++
	n := ix.failures[job]
	SweepFailures.WithLabelValues(job).Inc()
	ConsecutiveFailures.WithLabelValues(job).Set(float64(n))
	ix.logger.WithError(err).WithFields(logrus.Fields{
		"job":                  job,
		"consecutive_failures": n,
	}).Error("sweep job failed")
	if n > ix.cfg.Sync.MaxConsecutiveFailures {
		return fmt.Errorf("job %s failed %d times in a row: %w", job, n, errors.Join(ErrTooManyFailures, err))
	}
	return nil
}

// Horizon is the timestamp of the lowest block processed for every lp stream.
// Accrual never runs past it, so a withdrawal not yet scanned can't be outrun.
// It is false until every lp stream has a checkpoint.
func (ix *Indexer) Horizon(ctx context.Context) (time.Time, bool, error) {
	vaults := ix.cfg.ContractsOfKind(config.ContractKindVault)
	if len(vaults) == 0 {
		return time.Time{}, false, nil
	}
	var minBlock uint
	found := false
	for _, v := range vaults {
		for _, aggType := range LPAggregations {
			c, err := ix.repo.Checkpoints.Get(ctx, v.Address, aggType)
			if errors.Is(err, db.ErrNotFound) {
				return time.Time{}, false, nil
			}
			if err != nil {
				return time.Time{}, false, err
			}
			if !found || c.LastBlock < minBlock {
				minBlock, found = c.LastBlock, true
			}
		}
	}
	ts, err := ix.source.GetBlockTimestamp(ctx, minBlock)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("can't get horizon block timestamp: %w", err)
	}
	return ts, true, nil
}

func (ix *Indexer) SettleRewards(ctx context.Context) (*ledger.SettleResult, error) {
	horizon, ok, err := ix.Horizon(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		ix.logger.Info("no rewards horizon yet, skipping settlement")
		return nil, nil
	}
	res, err := ix.ledger.SettleAll(ctx, horizon)
	if err != nil {
		return res, err
	}
	RewardsHorizon.Set(float64(horizon.Unix()))
	return res, nil
}

// ScanRange re-dispatches a block range of one job without moving its checkpoints.
func (ix *Indexer) ScanRange(ctx context.Context, job string, from, to uint) (*scanner.Result, error) {
	s, err := ix.Scanner(job)
	if err != nil {
		return nil, err
	}
	return s.ScanRange(ctx, from, to)
}

func prometheusTimer() func() {
	start := time.Now()
	return func() {
		SweepDuration.Observe(time.Since(start).Seconds())
	}
}

type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	res := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		res[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return res
}
