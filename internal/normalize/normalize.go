// Package normalize converts the heterogeneous value shapes delivered by the
// source store into canonical typed values. Every function is pure and
// total: a value that cannot be coerced yields absence, never an error.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"posmirror/internal/entity"
)

// instantFormat is the canonical wire form for timestamps: UTC, microsecond
// precision, explicit +00:00 offset.
const instantFormat = "2006-01-02T15:04:05.000000+00:00"

// epochMillisCutoff disambiguates bare epoch numbers: anything above it is
// taken as milliseconds, anything below as seconds.
const epochMillisCutoff = 1e12

// TimeConvertible is satisfied by source values that expose a native
// date-time conversion.
type TimeConvertible interface {
	AsTime() time.Time
}

// Timestamp coerces a raw source value into the canonical instant string.
// Accepted shapes: time.Time, TimeConvertible, epoch seconds or milliseconds
// (number or numeric string), {seconds, nanoseconds} maps including the
// underscore-prefixed alias, and pre-formatted strings. Nil yields absence;
// any other non-nil value is stringified rather than dropped.
func Timestamp(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case time.Time:
		return t.UTC().Format(instantFormat), true
	case TimeConvertible:
		return t.AsTime().UTC().Format(instantFormat), true
	case string:
		if t == "" {
			return "", false
		}
		if ts, ok := parseInstant(t); ok {
			return ts.UTC().Format(instantFormat), true
		}
		return t, true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return fromEpoch(f), true
		}
		return t.String(), true
	case float64:
		return fromEpoch(t), true
	case int64:
		return fromEpoch(float64(t)), true
	case int:
		return fromEpoch(float64(t)), true
	case map[string]any:
		if ts, ok := fromSecondsPair(t); ok {
			return ts, true
		}
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}

func parseInstant(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) string {
	sec := f
	if math.Abs(f) > epochMillisCutoff {
		sec = f / 1000
	}
	s := int64(sec)
	ns := int64(math.Round((sec - float64(s)) * 1e9))
	return time.Unix(s, ns).UTC().Format(instantFormat)
}

func fromSecondsPair(m map[string]any) (string, bool) {
	sec, ok := Int(m["seconds"])
	if !ok {
		sec, ok = Int(m["_seconds"])
	}
	if !ok {
		return "", false
	}
	ns, ok := Int(m["nanoseconds"])
	if !ok {
		ns, _ = Int(m["_nanoseconds"])
	}
	return time.Unix(sec, ns).UTC().Format(instantFormat), true
}

// Decimal coerces a raw value into an exact decimal. json.Number and string
// inputs keep their printed precision; binary floats are converted through
// shopspring's float constructor, which round-trips shortest representations
// (19.99 stays 19.99).
func Decimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	default:
		return decimal.Decimal{}, false
	}
}

// Int coerces a raw value into an int64, truncating fractional input the way
// the source system does for quantities and batch numbers.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// Bool coerces a raw flag. Missing or unrecognized values are false.
func Bool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// String coerces a raw value into a string column value. Non-string scalars
// are stringified rather than dropped; only nil is absent.
func String(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Record applies an entity configuration to an after-image and returns the
// canonical record keyed by warehouse column name. Absent values are omitted
// (null-stripping); declared defaults and the key fallback fill in after
// coercion. Nested sub-records and the repeated collection are coerced
// element-wise with the same rules.
func Record(cfg entity.Config, key string, after map[string]any) map[string]any {
	rec := make(map[string]any, len(cfg.Fields)+2)
	rec[cfg.KeyColumn] = key
	applyFields(rec, cfg.Fields, key, after)
	if cfg.Items != nil {
		if raw, ok := after[cfg.Items.Source].([]any); ok {
			items := make([]map[string]any, 0, len(raw))
			for _, el := range raw {
				src, ok := el.(map[string]any)
				if !ok {
					continue
				}
				item := make(map[string]any, len(cfg.Items.Fields))
				applyFields(item, cfg.Items.Fields, key, src)
				items = append(items, item)
			}
			rec[cfg.Items.Column] = items
		}
	}
	return rec
}

func applyFields(dst map[string]any, fields []entity.FieldMapping, key string, src map[string]any) {
	for _, f := range fields {
		v, ok := coerce(f, src[f.Source], key)
		switch {
		case ok:
			dst[f.Column] = v
		case f.KeyFallback:
			dst[f.Column] = key
		case f.Default != nil:
			dst[f.Column] = f.Default
		}
	}
}

func coerce(f entity.FieldMapping, v any, key string) (any, bool) {
	switch f.Coerce {
	case entity.CoerceTimestamp:
		return absent(Timestamp(v))
	case entity.CoerceDecimal:
		d, ok := Decimal(v)
		return d, ok
	case entity.CoerceInt:
		n, ok := Int(v)
		return n, ok
	case entity.CoerceBool:
		// Flags are always present; missing means false.
		return Bool(v), true
	case entity.CoerceStruct:
		src, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		sub := make(map[string]any, len(f.Fields))
		applyFields(sub, f.Fields, key, src)
		if len(sub) == 0 {
			return nil, false
		}
		return sub, true
	default:
		return absent(String(v))
	}
}

func absent(s string, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	return s, true
}
