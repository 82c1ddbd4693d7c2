package scanner

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/entity"
)

type BlocksRange struct {
	From uint
	To   uint
}

// Target is one checkpointed stream: events of one aggregation type emitted by one contract.
type Target struct {
	Address         common.Address
	AggregationType entity.AggregationType
	StartBlock      uint
}

// Job is a set of targets scanned together as one ordered log stream.
type Job struct {
	Name    string
	Topics  []common.Hash
	Targets []Target
}

func (j *Job) Addresses() []common.Address {
	seen := make(map[common.Address]bool, len(j.Targets))
	res := make([]common.Address, 0, len(j.Targets))
	for _, t := range j.Targets {
		if !seen[t.Address] {
			seen[t.Address] = true
			res = append(res, t.Address)
		}
	}
	return res
}

type State int

const (
	StateIdle State = iota
	StateScanning
	StateAdvancing
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateAdvancing:
		return "advancing"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Result struct {
	FromBlock uint
	ToBlock   uint
	Windows   int
	Logs      int
	Applied   int
	Skipped   int
}

func SplitBlockRange(fromBlock uint, toBlock uint, maxSize uint) []*BlocksRange {
	if maxSize == 0 {
		maxSize = 1
	}
	batches := make([]*BlocksRange, 0, 10)
	for fromBlock <= toBlock {
		batchToBlock := fromBlock + maxSize - 1
		if batchToBlock > toBlock {
			batchToBlock = toBlock
		}
		batches = append(batches, &BlocksRange{
			From: fromBlock,
			To:   batchToBlock,
		})
		fromBlock += maxSize
	}
	return batches
}
