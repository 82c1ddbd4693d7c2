package presenter

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/points-indexer/entity"
)

var formats = map[string]string{
	"1":        "https://etherscan.io/tx/%s",
	"5":        "https://goerli.etherscan.io/tx/%s",
	"10":       "https://optimistic.etherscan.io/tx/%s",
	"56":       "https://bscscan.com/tx/%s",
	"100":      "https://gnosisscan.io/tx/%s",
	"137":      "https://polygonscan.com/tx/%s",
	"8453":     "https://basescan.org/tx/%s",
	"42161":    "https://arbiscan.io/tx/%s",
	"11155111": "https://sepolia.etherscan.io/tx/%s",
}

func txLink(chainID string, txHash common.Hash) string {
	if format, ok := formats[chainID]; ok {
		return fmt.Sprintf(format, txHash)
	}
	return txHash.String()
}

func txInfo(chainID string, blockNumber uint, ts time.Time, txHash common.Hash) *TxInfo {
	return &TxInfo{
		BlockNumber: blockNumber,
		Timestamp:   ts,
		Link:        txLink(chainID, txHash),
	}
}

func pointsToResult(points *entity.UserPoints) *PointsResult {
	return &PointsResult{
		User:         points.User,
		LPPoints:     points.LPPoints,
		MergerPoints: points.MergerPoints,
		TotalPoints:  points.TotalPoints,
	}
}
