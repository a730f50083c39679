package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB is the slice of the warehouse handle the client needs. *sqlx.DB
// satisfies it through the sqlxDB adapter.
type DB interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is the transactional subset used by the delete-then-reinsert strategy.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// Open connects to the warehouse and configures the process-wide handle. The
// returned handle is constructed once at startup and treated as read-only
// thereafter.
func Open(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type sqlxDB struct {
	*sqlx.DB
}

func (d sqlxDB) BeginTx(ctx context.Context) (Tx, error) {
	return d.DB.BeginTxx(ctx, nil)
}
