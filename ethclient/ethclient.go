package ethclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/omni/points-indexer/config"
)

var (
	ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")
	ErrNodeIsNotSynced     = errors.New("node is not synced to the requested block")
	ErrInvalidLogsQuery    = errors.New("invalid logs filter query")
)

type Client interface {
	BlockNumber(ctx context.Context) (uint, error)
	HeaderByNumber(ctx context.Context, n uint) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	FilterLogsSafe(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type rpcClient struct {
	chainID   string
	timeout   time.Duration
	limiter   *rate.Limiter
	rawClient *rpc.Client
	client    *ethclient.Client
}

// NewClient dials the JSON RPC endpoint and verifies that it serves the expected chain.
// A zero RPS disables rate limiting.
func NewClient(cfg *config.RPCConfig, chainID string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	client := &rpcClient{
		chainID:   chainID,
		timeout:   cfg.Timeout,
		limiter:   limiter,
		rawClient: rawClient,
		client:    ethclient.NewClient(rawClient),
	}
	rpcChainID, err := client.client.ChainID(ctx)
	if err != nil {
		rawClient.Close()
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if chainID != "" && rpcChainID.String() != chainID {
		rawClient.Close()
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	client.chainID = rpcChainID.String()
	return client, nil
}

// call applies the rate limit and the request timeout, and records metrics for the query.
func (c *rpcClient) call(ctx context.Context, query string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	defer ObserveDuration(c.chainID, query)()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(ctx)
	ObserveError(c.chainID, query, err)
	return err
}

func (c *rpcClient) BlockNumber(ctx context.Context) (uint, error) {
	var n uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.client.BlockNumber(ctx)
		return err
	})
	return uint(n), err
}

func (c *rpcClient) HeaderByNumber(ctx context.Context, n uint) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(uint64(n)))
		return err
	})
	return header, err
}

func (c *rpcClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.client.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

// FilterLogsSafe is the same as FilterLogs, but makes an additional eth_blockNumber
// request to ensure that the node behind RPC is synced to the needed point.
func (c *rpcClient) FilterLogsSafe(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, fmt.Errorf("can't encode filter argument: %w", err)
	}
	var logs []types.Log
	err = c.call(ctx, "eth_getLogsSafe", func(ctx context.Context) error {
		var blockNumber hexutil.Uint64
		batches := []rpc.BatchElem{
			{
				Method: "eth_getLogs",
				Args:   []interface{}{arg},
				Result: &logs,
			},
			{
				Method: "eth_blockNumber",
				Result: &blockNumber,
			},
		}
		if err := c.rawClient.BatchCallContext(ctx, batches); err != nil {
			return fmt.Errorf("can't make batch request: %w", err)
		}
		if err := batches[0].Error; err != nil {
			return fmt.Errorf("can't request logs: %w", err)
		}
		if err := batches[1].Error; err != nil {
			return fmt.Errorf("can't request block number: %w", err)
		}
		if uint64(blockNumber) < q.ToBlock.Uint64() {
			return fmt.Errorf("current block %d is older than toBlock %s in the query: %w", blockNumber, q.ToBlock, ErrNodeIsNotSynced)
		}
		return nil
	})
	return logs, err
}

func toFilterArg(q ethereum.FilterQuery) (interface{}, error) {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		return nil, ErrInvalidLogsQuery
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = hexutil.EncodeBig(q.FromBlock)
	}
	if q.ToBlock == nil || q.ToBlock.Sign() <= 0 {
		return nil, fmt.Errorf("only positive toBlock is supported: %w", ErrInvalidLogsQuery)
	}
	arg["toBlock"] = hexutil.EncodeBig(q.ToBlock)
	return arg, nil
}
