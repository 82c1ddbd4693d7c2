package postgres

import (
	"database/sql"
	"fmt"

	"github.com/omni/points-indexer/db"
)

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	}
	if n == 0 {
		return db.ErrConflict
	}
	return nil
}
