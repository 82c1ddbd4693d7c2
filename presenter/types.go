package presenter

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/entity"
)

type TxInfo struct {
	BlockNumber uint
	Timestamp   time.Time
	Link        string
}

type PositionResult struct {
	DepositID           string
	Vault               common.Address
	VaultName           string `json:",omitempty"`
	Shares              string
	USDValue            decimal.Decimal
	DepositTimestamp    time.Time
	LastRewardTimestamp time.Time
}

type UserPositionsResult struct {
	User      common.Address
	TotalUSD  decimal.Decimal
	Positions []*PositionResult
}

type PointsResult struct {
	User         common.Address
	LPPoints     decimal.Decimal
	MergerPoints decimal.Decimal
	TotalPoints  decimal.Decimal
}

type CheckpointResult struct {
	Address         common.Address
	ContractName    string `json:",omitempty"`
	AggregationType entity.AggregationType
	LastBlock       uint
}

type FeeResult struct {
	Token  common.Address
	Amount string
	*TxInfo
}

type ConversionResult struct {
	RewardToken common.Address
	AmountIn    string
	AmountOut   string
	*TxInfo
}
