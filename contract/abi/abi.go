package abi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/entity"
)

var ErrInvalidEvent = errors.New("invalid event")

type ABI struct {
	abi.ABI
}

func MustReadABI(rawJSON string) ABI {
	res, err := abi.JSON(strings.NewReader(rawJSON))
	if err != nil {
		panic(err)
	}
	return ABI{res}
}

// AllEvents returns the set of full event signatures,
// e.g. "event Transfer(address indexed from, address indexed to, uint256 value)".
func (a ABI) AllEvents() map[string]bool {
	events := make(map[string]bool, len(a.Events))
	for _, event := range a.Events {
		events[event.String()] = true
	}
	return events
}

// FindMatchingEventABI matches topic0 and the number of indexed arguments,
// so events sharing a name but differing in indexing are told apart.
func (a ABI) FindMatchingEventABI(topics []common.Hash) *abi.Event {
	if len(topics) == 0 {
		return nil
	}
	for _, e := range a.Events {
		e := e
		if e.ID == topics[0] && len(indexed(e.Inputs)) == len(topics)-1 {
			return &e
		}
	}
	return nil
}

// ParseLog decodes the log against the ABI. Unknown events yield an empty signature and no error.
func (a ABI) ParseLog(log *entity.Log) (string, map[string]interface{}, error) {
	topics := log.Topics()
	if len(topics) == 0 {
		return "", nil, fmt.Errorf("cannot process event without topics: %w", ErrInvalidEvent)
	}
	event := a.FindMatchingEventABI(topics)
	if event == nil {
		return "", nil, nil
	}

	res, err := decodeEventLog(event, topics, log.Data)
	if err != nil {
		return "", nil, fmt.Errorf("can't decode event log: %w", err)
	}
	return event.String(), res, nil
}

func indexed(args abi.Arguments) abi.Arguments {
	var res abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			res = append(res, arg)
		}
	}
	return res
}

func decodeEventLog(event *abi.Event, topics []common.Hash, data []byte) (map[string]interface{}, error) {
	indexedArgs := indexed(event.Inputs)
	values := make(map[string]interface{})
	if len(indexedArgs) < len(event.Inputs) {
		if err := event.Inputs.UnpackIntoMap(values, data); err != nil {
			return nil, fmt.Errorf("can't unpack data: %w", err)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexedArgs, topics[1:]); err != nil {
		return nil, fmt.Errorf("can't unpack topics: %w", err)
	}
	return values, nil
}
