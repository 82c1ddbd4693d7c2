package postgres

import (
	"fmt"

	"github.com/omni/points-indexer/db"
)

type basePostgresRepo struct {
	table string
	db    *db.DB
}

func newBasePostgresRepo(table string, db *db.DB) *basePostgresRepo {
	return &basePostgresRepo{
		table: table,
		db:    db,
	}
}

func (r *basePostgresRepo) column(name string) string {
	return fmt.Sprintf("%s.%s", r.table, name)
}
