package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/dispatcher"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/ledger"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/pricing"
	"github.com/omni/points-indexer/repository"
	"github.com/omni/points-indexer/rewards"
	"github.com/omni/points-indexer/utils"
)

type EventHandler struct {
	logger logging.Logger
	cfg    *config.Config
	repo   *repository.Repo
	ledger *ledger.Ledger
	oracle pricing.Oracle
}

func NewEventHandler(logger logging.Logger, cfg *config.Config, repo *repository.Repo, l *ledger.Ledger, oracle pricing.Oracle) *EventHandler {
	return &EventHandler{
		logger: logger,
		cfg:    cfg,
		repo:   repo,
		ledger: l,
		oracle: oracle,
	}
}

func (h *EventHandler) HandleDeposit(ctx context.Context, e *dispatcher.Event) error {
	owner, err := e.Address("owner")
	if err != nil {
		return err
	}
	assets, err := e.BigInt("assets")
	if err != nil {
		return err
	}
	shares, err := e.Uint256("shares")
	if err != nil {
		return err
	}
	usd, err := h.oracle.ValueUSD(ctx, e.Log.Address, assets)
	if err != nil {
		return fmt.Errorf("can't value deposit: %w", err)
	}
	return h.ledger.ApplyDeposit(ctx, owner, e.Log.Address, shares, usd, e.Timestamp, e.ID())
}

func (h *EventHandler) HandleWithdraw(ctx context.Context, e *dispatcher.Event) error {
	owner, err := e.Address("owner")
	if err != nil {
		return err
	}
	assets, err := e.BigInt("assets")
	if err != nil {
		return err
	}
	shares, err := e.Uint256("shares")
	if err != nil {
		return err
	}
	usd, err := h.oracle.ValueUSD(ctx, e.Log.Address, assets)
	if err != nil {
		return fmt.Errorf("can't value withdrawal: %w", err)
	}
	_, err = h.ledger.ApplyWithdrawal(ctx, owner, e.Log.Address, shares, usd, e.Timestamp)
	return err
}

// HandleTransfer moves lots between users. Mints and burns are skipped,
// Deposit and Withdraw already account for them.
func (h *EventHandler) HandleTransfer(ctx context.Context, e *dispatcher.Event) error {
	from, err := e.Address("from")
	if err != nil {
		return err
	}
	to, err := e.Address("to")
	if err != nil {
		return err
	}
	value, err := e.Uint256("value")
	if err != nil {
		return err
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return nil
	}
	_, err = h.ledger.ApplyTransfer(ctx, from, to, e.Log.Address, value, e.Timestamp, e.ID())
	return err
}

func (h *EventHandler) HandleFeeCollected(ctx context.Context, e *dispatcher.Event) error {
	token, err := e.Address("token")
	if err != nil {
		return err
	}
	amount, err := e.Uint256("amount")
	if err != nil {
		return err
	}
	return h.repo.FeeCollections.Ensure(ctx, &entity.FeeCollection{
		EventID:         e.ID(),
		Vault:           e.Log.Address,
		Token:           token,
		Amount:          amount,
		BlockNumber:     e.Log.BlockNumber,
		TransactionHash: e.Log.TransactionHash,
		Timestamp:       e.Timestamp,
	})
}

func (h *EventHandler) HandleRewardsConverted(ctx context.Context, e *dispatcher.Event) error {
	rewardToken, err := e.Address("rewardToken")
	if err != nil {
		return err
	}
	amountIn, err := e.Uint256("amountIn")
	if err != nil {
		return err
	}
	amountOut, err := e.Uint256("amountOut")
	if err != nil {
		return err
	}
	return h.repo.RewardsConversions.Ensure(ctx, &entity.RewardsConversion{
		EventID:         e.ID(),
		Vault:           e.Log.Address,
		RewardToken:     rewardToken,
		AmountIn:        amountIn,
		AmountOut:       amountOut,
		BlockNumber:     e.Log.BlockNumber,
		TransactionHash: e.Log.TransactionHash,
		Timestamp:       e.Timestamp,
	})
}

// HandleMerged credits merger points for the merged token amount.
func (h *EventHandler) HandleMerged(ctx context.Context, e *dispatcher.Event) error {
	account, err := e.Address("account")
	if err != nil {
		return err
	}
	amount, err := e.BigInt("amount")
	if err != nil {
		return err
	}
	merger := h.cfg.ContractByAddress(e.Log.Address)
	if merger == nil {
		return fmt.Errorf("merge event from unknown contract %s: %w", e.Log.Address, dispatcher.ErrMalformedEvent)
	}
	points := decimal.NewFromBigInt(amount, -merger.Decimals()).Mul(merger.MergePointsPerToken)
	if !points.IsPositive() {
		return nil
	}
	if err = h.repo.UserPoints.Increment(ctx, account, points, entity.PointsCategoryMerger); err != nil {
		return fmt.Errorf("can't credit merger points: %w", err)
	}
	utils.AfterCommit(ctx, func() {
		rewards.PointsCredited.WithLabelValues(string(entity.PointsCategoryMerger)).Add(points.InexactFloat64())
		h.logger.WithFields(logrus.Fields{
			"account": account,
			"amount":  amount,
			"points":  points,
		}).Info("credited merger points")
	})
	return nil
}
