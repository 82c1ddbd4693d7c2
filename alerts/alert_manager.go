package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/logging"
)

var ErrUnknownAlert = errors.New("unknown alert type")

const (
	AlertStaleCheckpoint = "stale_checkpoint"
	AlertLaggingRewards  = "lagging_rewards"
)

type Provider interface {
	FindStaleCheckpoints(ctx context.Context, params *AlertJobParams) (interface{}, error)
	FindLaggingRewards(ctx context.Context, params *AlertJobParams) (interface{}, error)
}

type AlertManager struct {
	logger logging.Logger
	jobs   map[string]*Job
}

func NewAlertManager(logger logging.Logger, provider Provider, cfg *config.Config) (*AlertManager, error) {
	jobs := make(map[string]*Job, len(cfg.Alerts))

	for name, alertCfg := range cfg.Alerts {
		switch name {
		case AlertStaleCheckpoint:
			jobs[name] = &Job{
				Interval: time.Minute,
				Timeout:  time.Second * 10,
				Func:     provider.FindStaleCheckpoints,
				Metric:   NewAlertStaleCheckpoint(cfg.Chain.ChainID),
				Params:   &AlertJobParams{Threshold: 3 * time.Hour},
			}
		case AlertLaggingRewards:
			jobs[name] = &Job{
				Interval: time.Minute * 5,
				Timeout:  time.Second * 20,
				Func:     provider.FindLaggingRewards,
				Metric:   NewAlertLaggingRewards(cfg.Chain.ChainID),
				Params:   &AlertJobParams{Threshold: 3 * time.Hour},
			}
		default:
			return nil, fmt.Errorf("alert %q: %w", name, ErrUnknownAlert)
		}
		jobs[name].logger = logger.WithField("alert_job", name)
		jobs[name].Params.ChainID = cfg.Chain.ChainID
		if alertCfg != nil && alertCfg.Threshold > 0 {
			jobs[name].Params.Threshold = alertCfg.Threshold
		}
	}

	return &AlertManager{
		logger: logger,
		jobs:   jobs,
	}, nil
}

func (m *AlertManager) Jobs() map[string]*Job {
	return m.jobs
}

func (m *AlertManager) Start(ctx context.Context, isSynced func() bool) {
	t := time.NewTicker(10 * time.Second)
	for !isSynced() {
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			m.logger.Debug("waiting for indexer to be synchronized")
		}
	}
	t.Stop()
	m.logger.Info("indexer is synced, starting alert manager jobs")

	for _, job := range m.jobs {
		go job.Start(ctx, isSynced)
	}
}
