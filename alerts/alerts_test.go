package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/alerts"
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/logging"
)

var vault = common.HexToAddress("0x7301CFA0e1756B71869E93d4e4Dca5c7d0eb0AA6")

type fakeProvider struct {
	stale   []alerts.StaleCheckpoint
	lagging []alerts.LaggingRewards
	err     error
	params  []*alerts.AlertJobParams
}

func (p *fakeProvider) FindStaleCheckpoints(_ context.Context, params *alerts.AlertJobParams) (interface{}, error) {
	p.params = append(p.params, params)
	return p.stale, p.err
}

func (p *fakeProvider) FindLaggingRewards(_ context.Context, params *alerts.AlertJobParams) (interface{}, error) {
	p.params = append(p.params, params)
	return p.lagging, p.err
}

func TestConvertToAlertMetricValues(t *testing.T) {
	t.Parallel()
	values, err := alerts.ConvertToAlertMetricValues([]alerts.StaleCheckpoint{{
		Address:         vault,
		AggregationType: "deposit",
		LastBlock:       700,
		Age:             7200,
	}})
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, prometheus.Labels{
		"address":          vault.Hex(),
		"aggregation_type": "deposit",
		"last_block":       "700",
	}, values[0].Labels())
	require.Equal(t, float64(7200), values[0].Value())

	values, err = alerts.ConvertToAlertMetricValues([]alerts.LaggingRewards{})
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestAlertManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := &fakeProvider{
		lagging: []alerts.LaggingRewards{{Vault: vault, Count: 3, Lag: 14400}},
	}
	cfg := &config.Config{
		Chain: &config.ChainConfig{ChainID: "1"},
		Alerts: map[string]*config.AlertConfig{
			alerts.AlertStaleCheckpoint: {Threshold: time.Hour},
			alerts.AlertLaggingRewards:  nil,
		},
	}
	m, err := alerts.NewAlertManager(logging.NewDiscard(), provider, cfg)
	require.NoError(t, err)
	jobs := m.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, &alerts.AlertJobParams{ChainID: "1", Threshold: time.Hour}, jobs[alerts.AlertStaleCheckpoint].Params)
	require.Equal(t, 3*time.Hour, jobs[alerts.AlertLaggingRewards].Params.Threshold)

	lagging := jobs[alerts.AlertLaggingRewards]
	require.NoError(t, lagging.RunOnce(ctx))
	require.Equal(t, 1, testutil.CollectAndCount(lagging.Metric))
	require.Equal(t, float64(14400), testutil.ToFloat64(lagging.Metric.With(prometheus.Labels{
		"vault_address": vault.Hex(),
		"count":         "3",
	})))

	// resolved alerts disappear
	provider.lagging = nil
	require.NoError(t, lagging.RunOnce(ctx))
	require.Equal(t, 0, testutil.CollectAndCount(lagging.Metric))

	provider.err = errors.New("db is down")
	require.Error(t, jobs[alerts.AlertStaleCheckpoint].RunOnce(ctx))
}

func TestNewAlertManager_UnknownAlert(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Chain:  &config.ChainConfig{ChainID: "1"},
		Alerts: map[string]*config.AlertConfig{"unknown": nil},
	}
	_, err := alerts.NewAlertManager(logging.NewDiscard(), &fakeProvider{}, cfg)
	require.ErrorIs(t, err, alerts.ErrUnknownAlert)
}
