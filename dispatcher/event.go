package dispatcher

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/omni/points-indexer/entity"
)

// ErrMalformedEvent marks events whose arguments can't be applied. Such events
// are logged and recorded as handled instead of failing the batch.
var ErrMalformedEvent = errors.New("malformed event")

// Event is a classified log together with its decoded arguments.
type Event struct {
	Log             *entity.Log
	Signature       string
	AggregationType entity.AggregationType
	Timestamp       time.Time
	Args            map[string]interface{}
}

func (e *Event) ID() string {
	return e.Log.EventID()
}

func (e *Event) Address(name string) (common.Address, error) {
	v, ok := e.Args[name]
	if !ok {
		return common.Address{}, fmt.Errorf("missing argument %q: %w", name, ErrMalformedEvent)
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("argument %q is %T, not an address: %w", name, v, ErrMalformedEvent)
	}
	return addr, nil
}

func (e *Event) BigInt(name string) (*big.Int, error) {
	v, ok := e.Args[name]
	if !ok {
		return nil, fmt.Errorf("missing argument %q: %w", name, ErrMalformedEvent)
	}
	x, ok := v.(*big.Int)
	if !ok || x == nil {
		return nil, fmt.Errorf("argument %q is %T, not an integer: %w", name, v, ErrMalformedEvent)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("argument %q is negative: %w", name, ErrMalformedEvent)
	}
	return x, nil
}

func (e *Event) Uint256(name string) (*uint256.Int, error) {
	x, err := e.BigInt(name)
	if err != nil {
		return nil, err
	}
	res, overflow := uint256.FromBig(x)
	if overflow {
		return nil, fmt.Errorf("argument %q overflows uint256: %w", name, ErrMalformedEvent)
	}
	return res, nil
}
