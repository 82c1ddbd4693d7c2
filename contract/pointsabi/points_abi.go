package pointsabi

//nolint:golint
import (
	_ "embed"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omni/points-indexer/contract/abi"
)

//go:embed events.json
var eventsJSONABI string

const (
	Deposit          = "event Deposit(address indexed sender, address indexed owner, uint256 assets, uint256 shares)"
	Withdraw         = "event Withdraw(address indexed sender, address indexed receiver, address indexed owner, uint256 assets, uint256 shares)"
	Transfer         = "event Transfer(address indexed from, address indexed to, uint256 value)"
	FeeCollected     = "event FeeCollected(address indexed token, uint256 amount)"
	RewardsConverted = "event RewardsConverted(address indexed rewardToken, uint256 amountIn, uint256 amountOut)"
	Merged           = "event Merged(address indexed account, uint256 amount)"
)

var (
	EventsABI = abi.MustReadABI(eventsJSONABI)

	DepositTopic          = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
	WithdrawTopic         = crypto.Keccak256Hash([]byte("Withdraw(address,address,address,uint256,uint256)"))
	TransferTopic         = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	FeeCollectedTopic     = crypto.Keccak256Hash([]byte("FeeCollected(address,uint256)"))
	RewardsConvertedTopic = crypto.Keccak256Hash([]byte("RewardsConverted(address,uint256,uint256)"))
	MergedTopic           = crypto.Keccak256Hash([]byte("Merged(address,uint256)"))
)

// Topics maps full event signatures to their topic0 for log filters.
func Topics(signatures ...string) []common.Hash {
	res := make([]common.Hash, 0, len(signatures))
	for _, sig := range signatures {
		for _, e := range EventsABI.Events {
			if e.String() == sig {
				res = append(res, e.ID)
			}
		}
	}
	return res
}
