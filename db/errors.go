package db

import (
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by optimistic writes whose expected row state
	// no longer matches. Transactions failing with it are retried.
	ErrConflict = errors.New("concurrent modification")
)

func IgnoreErrNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}

// IsRetryable reports whether a transaction failed because of a write
// conflict and can be safely replayed from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		hasCode(err, pgerrcode.SerializationFailure) ||
		hasCode(err, pgerrcode.DeadlockDetected)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
