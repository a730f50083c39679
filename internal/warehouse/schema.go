package warehouse

import (
	"context"
	"fmt"
	"strings"

	"posmirror/internal/entity"
)

// columnType maps a field coercion onto the replica column type. Instants are
// stored in their canonical string form, not as native timestamps, so the
// replica reproduces the wire value byte for byte.
func columnType(c entity.Coercion) string {
	switch c {
	case entity.CoerceDecimal:
		return "NUMERIC"
	case entity.CoerceInt:
		return "BIGINT"
	case entity.CoerceBool:
		return "BOOLEAN"
	case entity.CoerceStruct:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// createTableDDL renders the statements for one entity. Upsert tables key on
// a primary key so ON CONFLICT has a constraint to target; delete-then-
// reinsert tables only index the key, since a replace window may briefly
// hold more than one row.
func createTableDDL(cfg entity.Config) []string {
	cols := make([]string, 0, len(cfg.Fields)+2)
	if cfg.Strategy == entity.MergeUpsert {
		cols = append(cols, cfg.KeyColumn+" TEXT PRIMARY KEY")
	} else {
		cols = append(cols, cfg.KeyColumn+" TEXT NOT NULL")
	}
	for _, f := range cfg.Fields {
		cols = append(cols, f.Column+" "+columnType(f.Coerce))
	}
	if cfg.Items != nil {
		cols = append(cols, cfg.Items.Column+" JSONB")
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", cfg.Table, strings.Join(cols, ", ")),
	}
	if cfg.Strategy != entity.MergeUpsert {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			cfg.Table, cfg.KeyColumn, cfg.Table, cfg.KeyColumn))
	}
	return stmts
}

// EnsureSchema creates the replica tables for every registered entity.
// Idempotent; meant for dev and first-run bootstrap, not migrations.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, cfg := range entity.All() {
		for _, stmt := range createTableDDL(cfg) {
			if _, err := c.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema %s: %w", cfg.Table, err)
			}
		}
	}
	return nil
}
