package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/logging"
	"github.com/omni/points-indexer/presenter/http/middleware"
	"github.com/omni/points-indexer/presenter/http/render"
	"github.com/omni/points-indexer/repository"
)

type Presenter struct {
	logger logging.Logger
	cfg    *config.Config
	repo   *repository.Repo
	root   chi.Router
}

func NewPresenter(logger logging.Logger, repo *repository.Repo, cfg *config.Config) *Presenter {
	p := &Presenter{
		logger: logger,
		cfg:    cfg,
		repo:   repo,
		root:   chi.NewMux(),
	}
	p.root.Use(chimiddleware.Throttle(5))
	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(logger))
	p.root.Use(middleware.Recoverer)
	p.root.Route("/users/{address}", func(r chi.Router) {
		r.Use(middleware.GetAddressMiddleware)
		r.Use(middleware.GetFilterMiddleware)
		r.Get("/positions", p.wrapJSONHandler(p.GetUserPositions))
		r.Get("/points", p.wrapJSONHandler(p.GetUserPoints))
	})
	p.root.Route("/vaults/{address}", func(r chi.Router) {
		r.Use(middleware.GetAddressMiddleware)
		r.Use(middleware.GetLimitMiddleware)
		r.Use(middleware.GetFilterMiddleware)
		r.Get("/fees", p.wrapJSONHandler(p.GetVaultFees))
		r.Get("/conversions", p.wrapJSONHandler(p.GetVaultConversions))
	})
	p.root.With(middleware.GetLimitMiddleware, middleware.GetFilterMiddleware).
		Get("/leaderboard", p.wrapJSONHandler(p.GetLeaderboard))
	p.root.Get("/checkpoints", p.wrapJSONHandler(p.GetCheckpoints))
	return p
}

func (p *Presenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.root.ServeHTTP(w, r)
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
func (p *Presenter) Serve(ctx context.Context, addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	srv := &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (p *Presenter) wrapJSONHandler(handler func(ctx context.Context) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r.Context())
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, res)
	}
}

func (p *Presenter) contractName(addr common.Address) string {
	if c := p.cfg.ContractByAddress(addr); c != nil {
		return c.Name
	}
	return ""
}

func (p *Presenter) GetUserPositions(ctx context.Context) (interface{}, error) {
	filter := middleware.GetFilterContext(ctx)

	positions, err := p.repo.Positions.FindByUser(ctx, *filter.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to find user positions: %w", err)
	}
	res := &UserPositionsResult{
		User:      *filter.Address,
		TotalUSD:  decimal.Zero,
		Positions: make([]*PositionResult, len(positions)),
	}
	for i, pos := range positions {
		res.TotalUSD = res.TotalUSD.Add(pos.USDValue)
		res.Positions[i] = &PositionResult{
			DepositID:           pos.DepositID,
			Vault:               pos.Vault,
			VaultName:           p.contractName(pos.Vault),
			Shares:              pos.Shares.Dec(),
			USDValue:            pos.USDValue,
			DepositTimestamp:    pos.DepositTimestamp,
			LastRewardTimestamp: pos.LastRewardTimestamp,
		}
	}
	return res, nil
}

// GetUserPoints returns zero balances for users that never earned points.
func (p *Presenter) GetUserPoints(ctx context.Context) (interface{}, error) {
	filter := middleware.GetFilterContext(ctx)

	points, err := p.repo.UserPoints.GetByUser(ctx, *filter.Address)
	if errors.Is(err, db.ErrNotFound) {
		return &PointsResult{
			User:         *filter.Address,
			LPPoints:     decimal.Zero,
			MergerPoints: decimal.Zero,
			TotalPoints:  decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user points: %w", err)
	}
	return pointsToResult(points), nil
}

func (p *Presenter) GetLeaderboard(ctx context.Context) (interface{}, error) {
	filter := middleware.GetFilterContext(ctx)

	top, err := p.repo.UserPoints.FindTop(ctx, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find top users: %w", err)
	}
	res := make([]*PointsResult, len(top))
	for i, points := range top {
		res[i] = pointsToResult(points)
	}
	return res, nil
}

func (p *Presenter) GetCheckpoints(ctx context.Context) (interface{}, error) {
	checkpoints, err := p.repo.Checkpoints.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkpoints: %w", err)
	}
	res := make([]*CheckpointResult, len(checkpoints))
	for i, c := range checkpoints {
		res[i] = &CheckpointResult{
			Address:         c.Address,
			ContractName:    p.contractName(c.Address),
			AggregationType: c.AggregationType,
			LastBlock:       c.LastBlock,
		}
	}
	return res, nil
}

func (p *Presenter) vault(ctx context.Context) (*config.ContractConfig, error) {
	filter := middleware.GetFilterContext(ctx)
	vault := p.cfg.ContractByAddress(*filter.Address)
	if vault == nil || vault.Kind != config.ContractKindVault {
		return nil, fmt.Errorf("vault %s is not configured: %w", filter.Address, db.ErrNotFound)
	}
	return vault, nil
}

func (p *Presenter) GetVaultFees(ctx context.Context) (interface{}, error) {
	vault, err := p.vault(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := p.repo.FeeCollections.FindByVault(ctx, vault.Address, middleware.GetFilterContext(ctx).Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find fee collections: %w", err)
	}
	res := make([]*FeeResult, len(fees))
	for i, fee := range fees {
		res[i] = &FeeResult{
			Token:  fee.Token,
			Amount: fee.Amount.Dec(),
			TxInfo: txInfo(p.cfg.Chain.ChainID, fee.BlockNumber, fee.Timestamp, fee.TransactionHash),
		}
	}
	return res, nil
}

func (p *Presenter) GetVaultConversions(ctx context.Context) (interface{}, error) {
	vault, err := p.vault(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := p.repo.RewardsConversions.FindByVault(ctx, vault.Address, middleware.GetFilterContext(ctx).Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find rewards conversions: %w", err)
	}
	res := make([]*ConversionResult, len(conversions))
	for i, c := range conversions {
		res[i] = &ConversionResult{
			RewardToken: c.RewardToken,
			AmountIn:    c.AmountIn.Dec(),
			AmountOut:   c.AmountOut.Dec(),
			TxInfo:      txInfo(p.cfg.Chain.ChainID, c.BlockNumber, c.Timestamp, c.TransactionHash),
		}
	}
	return res, nil
}
