package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/juju/errors"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
)

// DefaultPoolTimeout bounds waiting for a pooled connection when the pool
// was not opened by NewPostgres.
const DefaultPoolTimeout = 30 * time.Second

// acquireTimeouts maps each *sqlx.DB to its pool_timeout.
var acquireTimeouts sync.Map

// SetPoolTimeout sets how long WithTx waits for a free connection of db.
func SetPoolTimeout(db *sqlx.DB, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultPoolTimeout
	}
	acquireTimeouts.Store(db, timeout)
}

func poolTimeout(db *sqlx.DB) time.Duration {
	if v, ok := acquireTimeouts.Load(db); ok {
		return v.(time.Duration)
	}
	return DefaultPoolTimeout
}

type Config struct {
	DSN         string
	PoolSize    int
	PoolTimeout time.Duration
	PoolRecycle time.Duration
}

// NewPostgres opens a bounded pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, Classify("open", err)
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size / 2)
	if cfg.PoolRecycle > 0 {
		db.SetConnMaxLifetime(cfg.PoolRecycle)
	}

	timeout := cfg.PoolTimeout
	if timeout <= 0 {
		timeout = DefaultPoolTimeout
	}
	SetPoolTimeout(db, timeout)
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, Classify("ping", err)
	}
	return db, nil
}

// WithConn acquires a dedicated connection for fn and always releases it.
// A connection left in a bad state is discarded by database/sql when fn
// reports driver.ErrBadConn; otherwise it goes back to the idle set.
func WithConn(ctx context.Context, db *sqlx.DB, timeout time.Duration, fn func(*sqlx.Conn) error) error {
	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := db.Connx(acquireCtx)
	if err != nil {
		return Classify("acquire", err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return Classify("acquire", err)
	}
	return fn(conn)
}

// WithTx runs fn inside a transaction on a connection acquired within the
// pool timeout. It commits when fn returns nil and rolls back on error or
// panic; the panic is re-raised after rollback.
func WithTx(ctx context.Context, db *sqlx.DB, op string, fn func(*sqlx.Tx) error) error {
	return WithConn(ctx, db, poolTimeout(db), func(conn *sqlx.Conn) error {
		return inTx(ctx, conn, op, fn)
	})
}

func inTx(ctx context.Context, conn *sqlx.Conn, op string, fn func(*sqlx.Tx) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return Classify(op, err)
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

	if err = fn(tx); err != nil {
		return Classify(op, err)
	}
	if err = tx.Commit(); err != nil {
		return Classify(op+" commit", err)
	}
	return nil
}

// Classify maps a driver error onto a PersistenceError. Errors that are
// already classified pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *apperr.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	kind := apperr.PersistenceOther

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = apperr.PersistenceTimeout
	case errors.As(err, &pgErr):
		switch {
		case pgErr.Code == "57014":
			kind = apperr.PersistenceTimeout
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			kind = apperr.PersistenceConnect
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23", pgErr.Code == "40001", pgErr.Code == "40P01":
			kind = apperr.PersistenceConflict
		}
	case pgconn.Timeout(err):
		kind = apperr.PersistenceTimeout
	case errors.Is(err, sql.ErrConnDone), isConnectError(err):
		kind = apperr.PersistenceConnect
	}
	return &apperr.PersistenceError{Kind: kind, Op: op, Cause: err}
}

func isConnectError(err error) bool {
	var ce *pgconn.ConnectError
	return errors.As(err, &ce)
}
