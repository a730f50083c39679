package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"posmirror/internal/entity"
	"posmirror/internal/event"
)

type capturedExec struct {
	query string
	args  []any
}

// fakeDB implements DB, recording every statement.
type fakeDB struct {
	execs    []capturedExec
	execErr  error
	getN     int
	getErr   error
	tx       *fakeTx
	beginErr error
}

func (f *fakeDB) GetContext(_ context.Context, dest any, query string, args ...any) error {
	if f.getErr != nil {
		return f.getErr
	}
	*(dest.(*int)) = f.getN
	return nil
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.execs = append(f.execs, capturedExec{query: query, args: args})
	return nil, nil
}

func (f *fakeDB) BeginTx(context.Context) (Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

type fakeTx struct {
	execs      []capturedExec
	failOn     int // 1-based index of the exec that fails; 0 never fails
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	if f.failOn > 0 && len(f.execs)+1 == f.failOn {
		return nil, errors.New("exec fail")
	}
	f.execs = append(f.execs, capturedExec{query: query, args: args})
	return nil, nil
}

func (f *fakeTx) Commit() error   { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = true; return nil }

func orderConfig(t *testing.T) entity.Config {
	t.Helper()
	cfg, ok := entity.Lookup(event.TypeOrder)
	if !ok {
		t.Fatalf("order config missing")
	}
	return cfg
}

func TestExists(t *testing.T) {
	db := &fakeDB{getN: 1}
	c := NewClientWith(db, zap.NewNop())
	cfg := orderConfig(t)

	exists, err := c.Exists(context.Background(), cfg, "o1")
	if err != nil || !exists {
		t.Fatalf("exists: %v err=%v", exists, err)
	}

	db.getN = 0
	exists, err = c.Exists(context.Background(), cfg, "o1")
	if err != nil || exists {
		t.Fatalf("absent key: %v err=%v", exists, err)
	}

	db.getErr = errors.New("connection reset")
	if _, err := c.Exists(context.Background(), cfg, "o1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpsert_ConflictClauseCoversEveryColumn(t *testing.T) {
	db := &fakeDB{}
	c := NewClientWith(db, zap.NewNop())
	cfg := orderConfig(t)

	rec := map[string]any{"order_id": "o1", "store_id": "store-a"}
	if err := c.Upsert(context.Background(), cfg, "o1", rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(db.execs) != 1 {
		t.Fatalf("want 1 exec, got %d", len(db.execs))
	}

	q := db.execs[0].query
	if !strings.Contains(q, "INSERT INTO orders") {
		t.Fatalf("not an insert: %s", q)
	}
	if !strings.Contains(q, "ON CONFLICT (order_id) DO UPDATE SET") {
		t.Fatalf("missing conflict clause: %s", q)
	}
	for _, col := range cfg.Columns() {
		if col == cfg.KeyColumn {
			continue
		}
		if !strings.Contains(q, col+" = EXCLUDED."+col) {
			t.Fatalf("column %s not overwritten on conflict: %s", col, q)
		}
	}
}

// An update is a complete overwrite: columns absent from the record must be
// bound as NULL, not skipped.
func TestUpsert_AbsentColumnsBindNull(t *testing.T) {
	db := &fakeDB{}
	c := NewClientWith(db, zap.NewNop())
	cfg := orderConfig(t)

	if err := c.Upsert(context.Background(), cfg, "o1", map[string]any{"order_id": "o1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	args := db.execs[0].args
	if len(args) != len(cfg.Columns()) {
		t.Fatalf("want %d args, got %d", len(cfg.Columns()), len(args))
	}
	if args[0] != "o1" {
		t.Fatalf("key arg: %v", args[0])
	}
	nulls := 0
	for _, a := range args[1:] {
		if a == nil {
			nulls++
		}
	}
	if nulls != len(args)-1 {
		t.Fatalf("every mapped column should be NULL, got %d of %d", nulls, len(args)-1)
	}
}

func TestDeleteThenInsert_CommitsDeleteAndInsert(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	c := NewClientWith(db, zap.NewNop())
	cfg, _ := entity.Lookup(event.TypeLineGroup)

	rec := map[string]any{
		"line_group_id": "lg1",
		"order_id":      "o1",
		"items":         []map[string]any{{"product_id": "p1"}},
	}
	if err := c.DeleteThenInsert(context.Background(), cfg, "lg1", rec); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(tx.execs) != 2 {
		t.Fatalf("want delete+insert, got %d statements", len(tx.execs))
	}
	if !strings.Contains(tx.execs[0].query, "DELETE FROM order_details") {
		t.Fatalf("first statement: %s", tx.execs[0].query)
	}
	if !strings.Contains(tx.execs[1].query, "INSERT INTO order_details") {
		t.Fatalf("second statement: %s", tx.execs[1].query)
	}
	if strings.Contains(tx.execs[1].query, "ON CONFLICT") {
		t.Fatalf("replace insert must not carry a conflict clause")
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestDeleteThenInsert_RollsBackOnInsertFailure(t *testing.T) {
	tx := &fakeTx{failOn: 2}
	db := &fakeDB{tx: tx}
	c := NewClientWith(db, zap.NewNop())
	cfg, _ := entity.Lookup(event.TypeLineGroup)

	err := c.DeleteThenInsert(context.Background(), cfg, "lg1", map[string]any{"line_group_id": "lg1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestAppendBestEffort_PlainInsert(t *testing.T) {
	db := &fakeDB{}
	c := NewClientWith(db, zap.NewNop())
	cfg := orderConfig(t)

	if err := c.AppendBestEffort(context.Background(), cfg, "o1", map[string]any{"order_id": "o1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	q := db.execs[0].query
	if strings.Contains(q, "ON CONFLICT") {
		t.Fatalf("fallback append must not upsert: %s", q)
	}
}

func TestDeleteByKey(t *testing.T) {
	db := &fakeDB{}
	c := NewClientWith(db, zap.NewNop())
	cfg := orderConfig(t)

	if err := c.DeleteByKey(context.Background(), cfg, "o1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	q := db.execs[0].query
	if !strings.Contains(q, "DELETE FROM orders") || !strings.Contains(q, "order_id") {
		t.Fatalf("unexpected delete: %s", q)
	}
	if db.execs[0].args[0] != "o1" {
		t.Fatalf("delete arg: %v", db.execs[0].args)
	}
}

func TestRowValues_JSONBWrapping(t *testing.T) {
	cfg := orderConfig(t)
	rec := map[string]any{
		"order_id":      "o1",
		"customer_info": map[string]any{"full_name": "Jordan Cruz"},
	}
	cols, vals := rowValues(cfg, "o1", rec)
	for i, col := range cols {
		if col != "customer_info" {
			continue
		}
		if _, ok := vals[i].(JSONB); !ok {
			t.Fatalf("customer_info not wrapped: %T", vals[i])
		}
		return
	}
	t.Fatalf("customer_info column missing from %v", cols)
}
