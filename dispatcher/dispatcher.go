package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/contract/abi"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/logging"
)

type Handler func(ctx context.Context, event *Event) error

type TimestampSource interface {
	GetBlockTimestamp(ctx context.Context, blockNumber uint) (time.Time, error)
}

type registration struct {
	aggType entity.AggregationType
	handle  Handler
}

type Stats struct {
	Applied    int
	Duplicates int
	Malformed  int
	Unknown    int
}

// Dispatcher applies each classified log at most once per aggregation type.
// The handler and the processed-event record share one transaction.
type Dispatcher struct {
	logger     logging.Logger
	tx         entity.Transactor
	processed  entity.ProcessedEventsRepo
	timestamps TimestampSource
	abi        abi.ABI
	handlers   map[string]registration
	byTopic    map[common.Hash]entity.AggregationType
}

func New(logger logging.Logger, tx entity.Transactor, processed entity.ProcessedEventsRepo, timestamps TimestampSource, contractABI abi.ABI) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		tx:         tx,
		processed:  processed,
		timestamps: timestamps,
		abi:        contractABI,
		handlers:   make(map[string]registration, 8),
		byTopic:    make(map[common.Hash]entity.AggregationType, 8),
	}
}

func (d *Dispatcher) RegisterEventHandler(event string, aggType entity.AggregationType, handler Handler) {
	d.handlers[event] = registration{aggType: aggType, handle: handler}
	for _, e := range d.abi.Events {
		if e.String() == event {
			d.byTopic[e.ID] = aggType
		}
	}
}

func (d *Dispatcher) VerifyEventHandlersABI() error {
	events := d.abi.AllEvents()
	for e := range d.handlers {
		if !events[e] {
			return fmt.Errorf("contract does not have %s event in its ABI", e)
		}
	}
	return nil
}

// AggregationOf classifies a log by its topic0 without decoding it.
func (d *Dispatcher) AggregationOf(log *entity.Log) (entity.AggregationType, bool) {
	if log.Topic0 == nil {
		return "", false
	}
	aggType, ok := d.byTopic[*log.Topic0]
	return aggType, ok
}

// Dispatch applies logs in the given order. It stops at the first handler
// failure, leaving that and all later logs unapplied.
func (d *Dispatcher) Dispatch(ctx context.Context, logs []*entity.Log) (*Stats, error) {
	stats := new(Stats)
	for _, log := range logs {
		if err := d.dispatch(ctx, log, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, log *entity.Log, stats *Stats) error {
	logger := d.logger.WithFields(logrus.Fields{
		"address":      log.Address,
		"block_number": log.BlockNumber,
		"tx_hash":      log.TransactionHash,
		"log_index":    log.LogIndex,
	})
	aggType, known := d.AggregationOf(log)
	signature, args, err := d.abi.ParseLog(log)
	if err != nil {
		if !known {
			stats.Unknown++
			logger.WithError(err).Trace("dropping undecodable unknown log")
			return nil
		}
		stats.Malformed++
		DispatchedEvents.WithLabelValues(string(aggType), "malformed").Inc()
		logger.WithError(err).Warn("can't decode event, skipping")
		return d.record(ctx, aggType, log)
	}
	reg, ok := d.handlers[signature]
	if !ok {
		stats.Unknown++
		DispatchedEvents.WithLabelValues("", "unknown").Inc()
		logger.WithField("event", signature).Trace("dropping unknown event")
		return nil
	}
	logger = logger.WithFields(logrus.Fields{
		"event":            signature,
		"aggregation_type": reg.aggType,
	})

	eventID := log.EventID()
	exists, err := d.processed.Exists(ctx, reg.aggType, eventID)
	if err != nil {
		return fmt.Errorf("can't check processed event: %w", err)
	}
	if exists {
		stats.Duplicates++
		DispatchedEvents.WithLabelValues(string(reg.aggType), "duplicate").Inc()
		logger.Debug("event already applied, skipping")
		return nil
	}
	ts, err := d.timestamps.GetBlockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		return fmt.Errorf("can't get block timestamp: %w", err)
	}

	event := &Event{
		Log:             log,
		Signature:       signature,
		AggregationType: reg.aggType,
		Timestamp:       ts,
		Args:            args,
	}
	status := "applied"
	err = d.tx.RunInTx(ctx, func(ctx context.Context) error {
		status = "applied"
		// re-checked inside the transaction for concurrent rescans
		exists, err := d.processed.Exists(ctx, reg.aggType, eventID)
		if err != nil {
			return fmt.Errorf("can't check processed event: %w", err)
		}
		if exists {
			status = "duplicate"
			return nil
		}
		logger.Trace("handling event")
		if err = reg.handle(ctx, event); err != nil {
			if !errors.Is(err, ErrMalformedEvent) {
				return err
			}
			logger.WithError(err).Warn("malformed event, skipping")
			status = "malformed"
		}
		return d.processed.Save(ctx, newProcessedEvent(reg.aggType, log))
	})
	if err != nil {
		DispatchedEvents.WithLabelValues(string(reg.aggType), "failed").Inc()
		return fmt.Errorf("can't handle %s event %s: %w", reg.aggType, eventID, err)
	}
	DispatchedEvents.WithLabelValues(string(reg.aggType), status).Inc()
	switch status {
	case "duplicate":
		stats.Duplicates++
	case "malformed":
		stats.Malformed++
	default:
		stats.Applied++
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, aggType entity.AggregationType, log *entity.Log) error {
	if err := d.processed.Save(ctx, newProcessedEvent(aggType, log)); err != nil {
		return fmt.Errorf("can't record malformed event: %w", err)
	}
	return nil
}

func newProcessedEvent(aggType entity.AggregationType, log *entity.Log) *entity.ProcessedEvent {
	return &entity.ProcessedEvent{
		AggregationType: aggType,
		EventID:         log.EventID(),
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TransactionHash,
		LogIndex:        log.LogIndex,
	}
}
