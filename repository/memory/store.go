// Package memory keeps repository state in process memory. It backs the
// tests and local dry runs; transactions are serialized and rolled back
// from a snapshot on error, while writes outside a transaction wait for it.
package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/repository"
	"github.com/omni/points-indexer/utils"
)

type checkpointKey struct {
	addr    common.Address
	aggType entity.AggregationType
}

type eventKey struct {
	aggType entity.AggregationType
	eventID string
}

type state struct {
	checkpoints        map[checkpointKey]entity.Checkpoint
	processedEvents    map[eventKey]entity.ProcessedEvent
	positions          map[string]*entity.Position
	userPoints         map[common.Address]entity.UserPoints
	blockTimestamps    map[uint]entity.BlockTimestamp
	feeCollections     map[string]entity.FeeCollection
	rewardsConversions map[string]entity.RewardsConversion
}

func newState() *state {
	return &state{
		checkpoints:        make(map[checkpointKey]entity.Checkpoint),
		processedEvents:    make(map[eventKey]entity.ProcessedEvent),
		positions:          make(map[string]*entity.Position),
		userPoints:         make(map[common.Address]entity.UserPoints),
		blockTimestamps:    make(map[uint]entity.BlockTimestamp),
		feeCollections:     make(map[string]entity.FeeCollection),
		rewardsConversions: make(map[string]entity.RewardsConversion),
	}
}

func (s *state) clone() *state {
	res := newState()
	for k, v := range s.checkpoints {
		res.checkpoints[k] = v
	}
	for k, v := range s.processedEvents {
		res.processedEvents[k] = v
	}
	for k, v := range s.positions {
		res.positions[k] = v.Clone()
	}
	for k, v := range s.userPoints {
		res.userPoints[k] = v
	}
	for k, v := range s.blockTimestamps {
		res.blockTimestamps[k] = v
	}
	for k, v := range s.feeCollections {
		res.feeCollections[k] = v
	}
	for k, v := range s.rewardsConversions {
		res.rewardsConversions[k] = v
	}
	return res
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

type txCtxKey struct{}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txCtxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	ctx, runHooks := utils.WithCommitHooks(context.WithValue(ctx, txCtxKey{}, true))
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	runHooks()
	return nil
}

func (s *Store) read(fn func(data *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn to the store. Outside a transaction it waits for open
// transactions to finish, so a rollback never drops it.
func (s *Store) write(ctx context.Context, fn func(data *state) error) error {
	if ctx.Value(txCtxKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// NewRepo wires every repository to a fresh in-memory store.
func NewRepo() *repository.Repo {
	return NewStore().Repo()
}

func (s *Store) Repo() *repository.Repo {
	return &repository.Repo{
		Tx:                 s,
		Checkpoints:        (*checkpointsRepo)(s),
		ProcessedEvents:    (*processedEventsRepo)(s),
		Positions:          (*positionsRepo)(s),
		UserPoints:         (*userPointsRepo)(s),
		BlockTimestamps:    (*blockTimestampsRepo)(s),
		FeeCollections:     (*feeCollectionsRepo)(s),
		RewardsConversions: (*rewardsConversionsRepo)(s),
	}
}
