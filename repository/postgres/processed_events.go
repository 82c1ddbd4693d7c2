package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/omni/points-indexer/db"
	"github.com/omni/points-indexer/entity"
)

type processedEventsRepo basePostgresRepo

func NewProcessedEventsRepo(table string, db *db.DB) entity.ProcessedEventsRepo {
	return (*processedEventsRepo)(newBasePostgresRepo(table, db))
}

func (r *processedEventsRepo) Exists(ctx context.Context, aggType entity.AggregationType, eventID string) (bool, error) {
	q, args, err := sq.Select("1").
		Prefix("SELECT EXISTS (").
		From(r.table).
		Where(sq.Eq{"aggregation_type": aggType, "event_id": eventID}).
		Suffix(")").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var exists bool
	err = r.db.GetContext(ctx, &exists, q, args...)
	if err != nil {
		return false, fmt.Errorf("can't check processed event: %w", err)
	}
	return exists, nil
}

func (r *processedEventsRepo) Save(ctx context.Context, event *entity.ProcessedEvent) error {
	q, args, err := sq.Insert(r.table).
		Columns("aggregation_type", "event_id", "block_number", "transaction_hash", "log_index").
		Values(event.AggregationType, event.EventID, event.BlockNumber, event.TransactionHash, event.LogIndex).
		Suffix("ON CONFLICT (aggregation_type, event_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil && !db.IsUniqueViolation(err) {
		return fmt.Errorf("can't insert processed event: %w", err)
	}
	return nil
}
