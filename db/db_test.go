package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/utils"
)

func TestRetryTx(t *testing.T) {
	t.Parallel()

	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	errOther := errors.New("constraint violated")

	for _, tc := range []struct {
		name     string
		failures []error
		calls    int
		err      error
	}{
		{name: "commits first time", calls: 1},
		{name: "replays conflicts", failures: []error{db.ErrConflict, serialization}, calls: 3},
		{name: "stops on other errors", failures: []error{errOther}, calls: 1, err: errOther},
		{
			name:     "gives up after the last attempt",
			failures: []error{db.ErrConflict, db.ErrConflict, db.ErrConflict},
			calls:    3,
			err:      db.ErrConflict,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := utils.RetryConfig{Attempts: 3, BaseDelay: time.Millisecond}
			calls := 0
			err := db.RetryTx(context.Background(), cfg, func(ctx context.Context) error {
				calls++
				if calls <= len(tc.failures) {
					return fmt.Errorf("attempt %d: %w", calls, tc.failures[calls-1])
				}
				return nil
			})
			require.Equal(t, tc.calls, calls)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRetryTx_NoSleepAfterLastAttempt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := utils.RetryConfig{Attempts: 1, BaseDelay: time.Hour}

	st := time.Now()
	err := db.RetryTx(ctx, cfg, func(ctx context.Context) error {
		return db.ErrConflict
	})
	require.ErrorIs(t, err, db.ErrConflict)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(st), time.Second)
}
