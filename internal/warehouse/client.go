// Package warehouse applies normalized records to the analytical replica.
// Two replace strategies are offered: a declarative conditional upsert for
// flat rows, and delete-then-reinsert for rows carrying a repeated jsonb
// substructure. Neither retries internally; the dispatcher decides what a
// failure means.
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"posmirror/internal/entity"
)

// DefaultExistsTimeout bounds the client-side wait on existence checks.
// Write operations deliberately carry no timeout.
const DefaultExistsTimeout = 10 * time.Second

type Client struct {
	db            DB
	log           *zap.Logger
	existsTimeout time.Duration
}

// NewClient wraps the process-wide warehouse handle.
func NewClient(db *sqlx.DB, log *zap.Logger) *Client {
	return NewClientWith(sqlxDB{db}, log)
}

// NewClientWith is for tests to inject a fake DB.
func NewClientWith(db DB, log *zap.Logger) *Client {
	return &Client{db: db, log: log, existsTimeout: DefaultExistsTimeout}
}

// Exists reports whether any row for the idempotency key is present. Used
// only on the create path.
func (c *Client) Exists(ctx context.Context, cfg entity.Config, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.existsTimeout)
	defer cancel()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(1)")
	sb.From(cfg.Table)
	sb.Where(sb.Equal(cfg.KeyColumn, key))

	query, args := sb.Build()
	var n int
	if err := c.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, fmt.Errorf("existence check %s key=%s: %w", cfg.Table, key, err)
	}
	return n > 0, nil
}

// Upsert inserts the record if the key is absent and otherwise overwrites
// every mapped column of the existing row. Columns absent from the record
// are written as NULL so an update is always a complete overwrite.
func (c *Client) Upsert(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error {
	cols, vals := rowValues(cfg, key, rec)
	query, args := insertQuery(cfg.Table, cols, vals)
	query += upsertClause(cfg.KeyColumn, cols)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s key=%s: %w", cfg.Table, key, err)
	}
	return nil
}

// DeleteThenInsert removes every row for the key and inserts the full record
// in one transaction. There is a window with zero rows for the key if the
// transaction is observed mid-flight by a reader at a weaker isolation level.
func (c *Client) DeleteThenInsert(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error {
	tx, err := c.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin replace %s key=%s: %w", cfg.Table, key, err)
	}

	delQuery, delArgs := deleteQuery(cfg, key)
	if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace delete %s key=%s: %w", cfg.Table, key, err)
	}

	cols, vals := rowValues(cfg, key, rec)
	insQuery, insArgs := insertQuery(cfg.Table, cols, vals)
	if _, err := tx.ExecContext(ctx, insQuery, insArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace insert %s key=%s: %w", cfg.Table, key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %s key=%s: %w", cfg.Table, key, err)
	}
	return nil
}

// AppendBestEffort writes the record as a plain insert with no conflict
// handling. Not idempotent: redelivery or a partially-applied primary write
// can leave duplicate rows. Only invoked after an upsert failure.
func (c *Client) AppendBestEffort(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error {
	cols, vals := rowValues(cfg, key, rec)
	query, args := insertQuery(cfg.Table, cols, vals)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append %s key=%s: %w", cfg.Table, key, err)
	}
	c.log.Warn("fallback append applied",
		zap.String("table", cfg.Table),
		zap.String("key", key))
	return nil
}

// DeleteByKey removes every row for the key. Deleting an absent key is a
// no-op success.
func (c *Client) DeleteByKey(ctx context.Context, cfg entity.Config, key string) error {
	query, args := deleteQuery(cfg, key)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s key=%s: %w", cfg.Table, key, err)
	}
	return nil
}

// rowValues flattens a normalized record into the configured column order.
// Absent scalars become NULL; sub-records and the repeated collection are
// wrapped for jsonb storage.
func rowValues(cfg entity.Config, key string, rec map[string]any) ([]string, []any) {
	cols := cfg.Columns()
	vals := make([]any, 0, len(cols))
	vals = append(vals, key)
	for _, f := range cfg.Fields {
		v, ok := rec[f.Column]
		switch {
		case !ok:
			vals = append(vals, nil)
		case f.Coerce == entity.CoerceStruct:
			vals = append(vals, JSONB{Data: v})
		default:
			vals = append(vals, v)
		}
	}
	if cfg.Items != nil {
		if v, ok := rec[cfg.Items.Column]; ok {
			vals = append(vals, JSONB{Data: v})
		} else {
			vals = append(vals, nil)
		}
	}
	return cols, vals
}

func insertQuery(table string, cols []string, vals []any) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(vals...)
	return ib.Build()
}

func upsertClause(keyColumn string, cols []string) string {
	assigns := make([]string, 0, len(cols)-1)
	for _, col := range cols {
		if col == keyColumn {
			continue
		}
		assigns = append(assigns, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", keyColumn, strings.Join(assigns, ", "))
}

func deleteQuery(cfg entity.Config, key string) (string, []any) {
	dlb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	dlb.DeleteFrom(cfg.Table)
	dlb.Where(dlb.Equal(cfg.KeyColumn, key))
	return dlb.Build()
}
