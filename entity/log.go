package entity

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Log is a raw contract event as returned by eth_getLogs.
type Log struct {
	Address         common.Address
	Topic0          *common.Hash
	Topic1          *common.Hash
	Topic2          *common.Hash
	Topic3          *common.Hash
	Data            []byte
	BlockNumber     uint
	LogIndex        uint
	TransactionHash common.Hash
}

func NewLog(log types.Log) *Log {
	res := &Log{
		Address:         log.Address,
		Data:            log.Data,
		BlockNumber:     uint(log.BlockNumber),
		LogIndex:        log.Index,
		TransactionHash: log.TxHash,
	}
	if len(log.Topics) > 0 {
		res.Topic0 = &log.Topics[0]
		if len(log.Topics) > 1 {
			res.Topic1 = &log.Topics[1]
			if len(log.Topics) > 2 {
				res.Topic2 = &log.Topics[2]
				if len(log.Topics) > 3 {
					res.Topic3 = &log.Topics[3]
				}
			}
		}
	}
	return res
}

func (l *Log) Topics() []common.Hash {
	topics := make([]common.Hash, 0, 4)
	for _, topic := range [4]*common.Hash{l.Topic0, l.Topic1, l.Topic2, l.Topic3} {
		if topic == nil {
			break
		}
		topics = append(topics, *topic)
	}
	return topics
}

// EventID is the identity of the log used for deduplication:
// the lowercase transaction hash immediately followed by the decimal log index.
func (l *Log) EventID() string {
	return EventID(l.TransactionHash, l.LogIndex)
}

func EventID(txHash common.Hash, logIndex uint) string {
	return strings.ToLower(txHash.Hex()) + strconv.FormatUint(uint64(logIndex), 10)
}

// Less orders logs by block number, then by log index.
func (l *Log) Less(other *Log) bool {
	return l.BlockNumber < other.BlockNumber || (l.BlockNumber == other.BlockNumber && l.LogIndex < other.LogIndex)
}
