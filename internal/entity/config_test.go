package entity

import (
	"testing"

	"posmirror/internal/event"
)

func TestLookup_AllTypesRegistered(t *testing.T) {
	for _, typ := range []event.Type{event.TypeOrder, event.TypeLineGroup, event.TypeProduct, event.TypeSellingTracking} {
		cfg, ok := Lookup(typ)
		if !ok {
			t.Fatalf("%s: not registered", typ)
		}
		if cfg.Table == "" || cfg.KeyColumn == "" {
			t.Fatalf("%s: incomplete config %+v", typ, cfg)
		}
	}
	if _, ok := Lookup(event.Type("cart")); ok {
		t.Fatalf("unknown type should not resolve")
	}
}

func TestConfig_Strategies(t *testing.T) {
	lg, _ := Lookup(event.TypeLineGroup)
	if lg.Strategy != DeleteThenReinsert {
		t.Fatalf("line groups must replace via delete-then-reinsert, got %s", lg.Strategy)
	}
	if lg.Items == nil || lg.Items.Column != "items" {
		t.Fatalf("line groups must carry an items collection: %+v", lg.Items)
	}
	for _, typ := range []event.Type{event.TypeOrder, event.TypeProduct, event.TypeSellingTracking} {
		cfg, _ := Lookup(typ)
		if cfg.Strategy != MergeUpsert {
			t.Fatalf("%s: want merge upsert, got %s", typ, cfg.Strategy)
		}
		if cfg.Items != nil {
			t.Fatalf("%s: flat entity must not carry a collection", typ)
		}
	}
}

func TestConfig_ColumnsOrderAndUniqueness(t *testing.T) {
	for _, cfg := range All() {
		cols := cfg.Columns()
		if cols[0] != cfg.KeyColumn {
			t.Fatalf("%s: key column must lead, got %s", cfg.Type, cols[0])
		}
		if cfg.Items != nil && cols[len(cols)-1] != cfg.Items.Column {
			t.Fatalf("%s: collection column must trail, got %s", cfg.Type, cols[len(cols)-1])
		}
		seen := make(map[string]bool, len(cols))
		for _, col := range cols {
			if seen[col] {
				t.Fatalf("%s: duplicate column %s", cfg.Type, col)
			}
			seen[col] = true
		}
	}
}

// Quantity semantics differ per entity: line items round to whole units while
// the tracking feed keeps fractional quantities.
func TestConfig_QuantityCoercions(t *testing.T) {
	lg, _ := Lookup(event.TypeLineGroup)
	var itemQty *FieldMapping
	for i := range lg.Items.Fields {
		if lg.Items.Fields[i].Column == "quantity" {
			itemQty = &lg.Items.Fields[i]
		}
	}
	if itemQty == nil || itemQty.Coerce != CoerceInt || itemQty.Default != int64(1) {
		t.Fatalf("item quantity mapping: %+v", itemQty)
	}

	st, _ := Lookup(event.TypeSellingTracking)
	for _, f := range st.Fields {
		if f.Column == "quantity" && f.Coerce != CoerceDecimal {
			t.Fatalf("tracking quantity must stay decimal, got %v", f.Coerce)
		}
	}
}
