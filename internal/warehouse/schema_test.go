package warehouse

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"posmirror/internal/entity"
	"posmirror/internal/event"
)

func TestCreateTableDDL_UpsertTableKeysOnPrimaryKey(t *testing.T) {
	cfg, _ := entity.Lookup(event.TypeOrder)
	stmts := createTableDDL(cfg)
	if len(stmts) != 1 {
		t.Fatalf("want 1 statement, got %d", len(stmts))
	}
	ddl := stmts[0]
	if !strings.Contains(ddl, "order_id TEXT PRIMARY KEY") {
		t.Fatalf("missing primary key: %s", ddl)
	}
	if !strings.Contains(ddl, "total_amount NUMERIC") {
		t.Fatalf("decimal column type: %s", ddl)
	}
	if !strings.Contains(ddl, "cash_sale BOOLEAN") {
		t.Fatalf("bool column type: %s", ddl)
	}
	if !strings.Contains(ddl, "customer_info JSONB") {
		t.Fatalf("struct column type: %s", ddl)
	}
	if !strings.Contains(ddl, "created_at TEXT") {
		t.Fatalf("instants are stored canonical-string: %s", ddl)
	}
}

func TestCreateTableDDL_ReplaceTableIndexesKey(t *testing.T) {
	cfg, _ := entity.Lookup(event.TypeLineGroup)
	stmts := createTableDDL(cfg)
	if len(stmts) != 2 {
		t.Fatalf("want table+index, got %d statements", len(stmts))
	}
	if strings.Contains(stmts[0], "PRIMARY KEY") {
		t.Fatalf("replace table must not constrain the key: %s", stmts[0])
	}
	if !strings.Contains(stmts[0], "items JSONB") {
		t.Fatalf("collection column: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "CREATE INDEX IF NOT EXISTS idx_order_details_line_group_id") {
		t.Fatalf("key index: %s", stmts[1])
	}
}

func TestEnsureSchema_CoversEveryEntity(t *testing.T) {
	db := &fakeDB{}
	c := NewClientWith(db, zap.NewNop())
	if err := c.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	joined := ""
	for _, e := range db.execs {
		joined += e.query + "\n"
	}
	for _, table := range []string{"orders", "order_details", "products", "orders_selling_tracking"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("table %s not created:\n%s", table, joined)
		}
	}
}
