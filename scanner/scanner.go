package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/chain"
	"github.com/omni/points-indexer/dispatcher"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/utils"
)

var ErrRetriesExhausted = utils.ErrRetriesExhausted

type Dispatcher interface {
	AggregationOf(log *entity.Log) (entity.AggregationType, bool)
	Dispatch(ctx context.Context, logs []*entity.Log) (*dispatcher.Stats, error)
}

type Config struct {
	MaxBlockRangeSize  uint
	BlockConfirmations uint
	SafeLogsRequest    bool
	Retry              utils.RetryConfig
}

type targetKey struct {
	address common.Address
	aggType entity.AggregationType
}

// Scanner walks a job's log stream in bounded windows, dispatches each window
// in (block, log index) order and then moves the job's checkpoints to the window end.
type Scanner struct {
	logger      logging.Logger
	cfg         Config
	job         *Job
	source      chain.Source
	checkpoints entity.CheckpointsRepo
	dispatcher  Dispatcher
	state       atomic.Int32
}

func New(logger logging.Logger, cfg Config, job *Job, source chain.Source, checkpoints entity.CheckpointsRepo, d Dispatcher) *Scanner {
	if cfg.BlockConfirmations == 0 {
		cfg.BlockConfirmations = 1
	}
	return &Scanner{
		logger:      logger.WithField("job", job.Name),
		cfg:         cfg,
		job:         job,
		source:      source,
		checkpoints: checkpoints,
		dispatcher:  d,
	}
}

func (s *Scanner) Job() *Job {
	return s.job
}

func (s *Scanner) State() State {
	return State(s.state.Load())
}

func (s *Scanner) setState(state State) {
	s.state.Store(int32(state))
	ScanState.WithLabelValues(s.job.Name).Set(float64(state))
}

// retry runs fn with the configured backoff, reporting the Retrying state between attempts.
func (s *Scanner) retry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempt := 0
	defer s.setState(s.State())
	return utils.Retry(ctx, s.cfg.Retry, s.logger, operation, func(ctx context.Context) error {
		if attempt++; attempt > 1 {
			s.setState(StateRetrying)
		}
		return fn(ctx)
	})
}

// Head returns the newest block considered final, or false if the chain is shorter than the confirmation depth.
func (s *Scanner) Head(ctx context.Context) (uint, bool, error) {
	var head uint
	err := s.retry(ctx, "get head block", func(ctx context.Context) error {
		var err error
		head, err = s.source.GetCurrentBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if head < s.cfg.BlockConfirmations {
		return 0, false, nil
	}
	head -= s.cfg.BlockConfirmations
	LatestHeadBlock.WithLabelValues(s.job.Name).Set(float64(head))
	return head, true, nil
}

// nextBlocks returns the first unprocessed block of every target.
func (s *Scanner) nextBlocks(ctx context.Context) (map[targetKey]uint, error) {
	var checkpoints []*entity.Checkpoint
	err := s.retry(ctx, "load checkpoints", func(ctx context.Context) error {
		var err error
		checkpoints, err = s.checkpoints.FindByAddresses(ctx, s.job.Addresses())
		return err
	})
	if err != nil {
		return nil, err
	}
	saved := make(map[targetKey]uint, len(checkpoints))
	for _, c := range checkpoints {
		saved[targetKey{c.Address, c.AggregationType}] = c.LastBlock
	}
	next := make(map[targetKey]uint, len(s.job.Targets))
	for _, t := range s.job.Targets {
		key := targetKey{t.Address, t.AggregationType}
		next[key] = t.StartBlock
		if last, ok := saved[key]; ok && last+1 > t.StartBlock {
			next[key] = last + 1
		}
		CheckpointBlock.WithLabelValues(s.job.Name, t.Address.String(), string(t.AggregationType)).Set(float64(next[key]) - 1)
	}
	return next, nil
}

// Scan processes everything between the job's checkpoints and the confirmed head.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	s.setState(StateScanning)
	res, err := s.scan(ctx)
	if err != nil {
		s.setState(StateFailed)
		return res, err
	}
	s.setState(StateIdle)
	return res, nil
}

func (s *Scanner) scan(ctx context.Context) (*Result, error) {
	res := new(Result)
	head, ok, err := s.Head(ctx)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, nil
	}
	next, err := s.nextBlocks(ctx)
	if err != nil {
		return res, err
	}
	if len(next) == 0 {
		return res, nil
	}
	fromBlock := head + 1
	for _, block := range next {
		if block < fromBlock {
			fromBlock = block
		}
	}
	res.FromBlock, res.ToBlock = fromBlock, head
	if fromBlock > head {
		return res, nil
	}

	windows := SplitBlockRange(fromBlock, head, s.cfg.MaxBlockRangeSize)
	s.logger.WithFields(logrus.Fields{
		"from_block": fromBlock,
		"to_block":   head,
		"windows":    len(windows),
	}).Info("scanning block range")
	for _, w := range windows {
		if err = s.processWindow(ctx, w, next, res); err != nil {
			return res, err
		}
		if err = s.advance(ctx, w.To, next); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ScanRange re-dispatches logs in [from, to] without touching checkpoints.
// Already applied events are skipped by the dispatcher. The range is clamped to
// the lowest checkpoint of the job, so events are never applied ahead of
// earlier ones that were not scanned yet.
func (s *Scanner) ScanRange(ctx context.Context, from, to uint) (*Result, error) {
	s.setState(StateScanning)
	res, err := s.scanRange(ctx, from, to)
	if err != nil {
		s.setState(StateFailed)
		return res, err
	}
	s.setState(StateIdle)
	return res, nil
}

func (s *Scanner) scanRange(ctx context.Context, from, to uint) (*Result, error) {
	res := &Result{FromBlock: from, ToBlock: to}
	checkpoints, err := s.nextBlocks(ctx)
	if err != nil {
		return res, err
	}
	next := make(map[targetKey]uint, len(s.job.Targets))
	for _, t := range s.job.Targets {
		next[targetKey{t.Address, t.AggregationType}] = t.StartBlock
	}
	for _, block := range checkpoints {
		if block <= to {
			if block == 0 || block <= from {
				s.logger.WithField("next_block", block).Warn("rescan range was not scanned yet, skipping")
				return res, nil
			}
			to = block - 1
		}
	}
	if to < res.ToBlock {
		s.logger.WithFields(logrus.Fields{
			"requested_to_block": res.ToBlock,
			"to_block":           to,
		}).Warn("rescan range is ahead of the job checkpoints, clamping")
		res.ToBlock = to
	}
	for _, w := range SplitBlockRange(from, to, s.cfg.MaxBlockRangeSize) {
		if err = s.processWindow(ctx, w, next, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Scanner) processWindow(ctx context.Context, w *BlocksRange, next map[targetKey]uint, res *Result) error {
	logger := s.logger.WithFields(logrus.Fields{
		"from_block": w.From,
		"to_block":   w.To,
	})
	var logs []*entity.Log
	err := s.retry(ctx, "fetch logs", func(ctx context.Context) error {
		var err error
		logs, err = s.source.GetLogs(ctx, s.job.Topics, w.From, w.To, s.job.Addresses(), s.cfg.SafeLogsRequest)
		return err
	})
	if err != nil {
		return fmt.Errorf("can't fetch logs in range %d-%d: %w", w.From, w.To, err)
	}
	chain.SortLogs(logs)

	pending := make([]*entity.Log, 0, len(logs))
	for _, log := range logs {
		if aggType, ok := s.dispatcher.AggregationOf(log); ok {
			start, tracked := next[targetKey{log.Address, aggType}]
			if !tracked || log.BlockNumber < start {
				res.Skipped++
				continue
			}
		}
		pending = append(pending, log)
	}
	res.Windows++
	res.Logs += len(logs)
	ScannedWindows.WithLabelValues(s.job.Name).Inc()

	stats, err := s.dispatcher.Dispatch(ctx, pending)
	if stats != nil {
		res.Applied += stats.Applied
	}
	if err != nil {
		return fmt.Errorf("can't dispatch logs in range %d-%d: %w", w.From, w.To, err)
	}
	logger.WithFields(logrus.Fields{
		"count":      len(logs),
		"applied":    stats.Applied,
		"duplicates": stats.Duplicates,
		"malformed":  stats.Malformed,
	}).Info("processed logs in range")
	return nil
}

func (s *Scanner) advance(ctx context.Context, block uint, next map[targetKey]uint) error {
	s.setState(StateAdvancing)
	defer s.setState(StateScanning)
	for _, t := range s.job.Targets {
		key := targetKey{t.Address, t.AggregationType}
		if next[key] > block {
			continue
		}
		err := s.retry(ctx, "save checkpoint", func(ctx context.Context) error {
			return s.checkpoints.Save(ctx, t.Address, t.AggregationType, block)
		})
		if err != nil {
			return fmt.Errorf("can't save checkpoint: %w", err)
		}
		next[key] = block + 1
		CheckpointBlock.WithLabelValues(s.job.Name, t.Address.String(), string(t.AggregationType)).Set(float64(block))
	}
	return nil
}

func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}
