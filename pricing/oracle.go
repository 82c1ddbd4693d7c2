package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/config"
)

var ErrUnknownVault = errors.New("unknown vault")

// Oracle values raw vault asset amounts in USD.
type Oracle interface {
	ValueUSD(ctx context.Context, vault common.Address, assets *big.Int) (decimal.Decimal, error)
}

type vaultPrice struct {
	decimals int32
	price    decimal.Decimal
}

// StaticOracle prices every vault asset at a fixed configured USD price.
type StaticOracle struct {
	prices map[common.Address]vaultPrice
}

func NewStaticOracle(contracts []*config.ContractConfig) *StaticOracle {
	prices := make(map[common.Address]vaultPrice, len(contracts))
	for _, c := range contracts {
		if c.Kind != config.ContractKindVault {
			continue
		}
		prices[c.Address] = vaultPrice{
			decimals: c.Decimals(),
			price:    c.AssetPriceUSD,
		}
	}
	return &StaticOracle{prices: prices}
}

func (o *StaticOracle) ValueUSD(_ context.Context, vault common.Address, assets *big.Int) (decimal.Decimal, error) {
	p, ok := o.prices[vault]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s: %w", vault, ErrUnknownVault)
	}
	return decimal.NewFromBigInt(assets, -p.decimals).Mul(p.price), nil
}
