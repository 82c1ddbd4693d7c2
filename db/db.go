package db

//nolint:golint,revive
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/utils"
)

var txRetry = utils.RetryConfig{
	Attempts:  5,
	BaseDelay: 20 * time.Millisecond,
	MaxDelay:  time.Second,
	Jitter:    0.3,
}

type DB struct {
	cfg *config.DBConfig
	db  *sqlx.DB
}

type txCtxKey struct{}

func (db *DB) Migrate() error {
	m, err := migrate.New("file://db/migrations", db.dbURL("pgx"))
	if err != nil {
		return fmt.Errorf("can't connect to postgres database: %w", err)
	}
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply postgres database migrations: %w", err)
	}
	return nil
}

func (db *DB) dbURL(prefix string) string {
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", prefix, db.cfg.User, db.cfg.Password, db.cfg.Host, db.cfg.Port, db.cfg.DB)
}

func NewDB(cfg *config.DBConfig) (*DB, error) {
	db := &DB{
		cfg: cfg,
	}
	conn, err := sqlx.ConnectContext(context.Background(), "pgx", db.dbURL("postgres"))
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	conn.SetMaxIdleConns(3)
	conn.SetMaxOpenConns(10)
	db.db = conn
	return db, nil
}

func ConnectToDBAndMigrate(cfg *config.DBConfig) (*DB, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}
	err = db.Migrate()
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// RunInTx executes fn inside a single transaction carried by the context.
// Queries issued through the same DB with the returned context join it.
// Nested calls reuse the outer transaction; only the outermost call commits
// and replays fn with backoff when the transaction hits a write conflict.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	return retryTx(ctx, txRetry, func(ctx context.Context) error {
		return db.runInTx(ctx, fn)
	})
}

// retryTx replays run while it fails with a retryable error, sleeping between
// attempts but not after the last one.
func retryTx(ctx context.Context, cfg utils.RetryConfig, run func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err = run(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == cfg.Attempts {
			break
		}
		TxRetries.Inc()
		if utils.ContextSleep(ctx, cfg.Backoff(attempt)) == nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", cfg.Attempts, err)
}

func (db *DB) runInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	ctx, runHooks := utils.WithCommitHooks(context.WithValue(ctx, txCtxKey{}, tx))
	if err = fn(ctx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}
	runHooks()
	return nil
}

func (db *DB) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.db
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer ObserveDuration(getCurrentFuncName(2))()
	return db.conn(ctx).ExecContext(ctx, query, args...)
}

func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer ObserveDuration(getCurrentFuncName(2))()
	err := sqlx.GetContext(ctx, db.conn(ctx), dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer ObserveDuration(getCurrentFuncName(2))()
	return sqlx.SelectContext(ctx, db.conn(ctx), dest, query, args...)
}

func getCurrentFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	details := runtime.FuncForPC(pc)
	if details == nil {
		return "unknown"
	}
	name := details.Name()
	name = name[strings.LastIndex(name, ".")+1:]
	name = strings.TrimPrefix(name, "(*")
	name = strings.Replace(name, ")", "", 1)
	return name
}
