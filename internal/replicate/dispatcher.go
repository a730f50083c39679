// Package replicate sequences the replication pipeline for one change event:
// entity configuration lookup, normalization, idempotency guard, replica
// write with fallback, and tombstone deletion. Every stage error is absorbed
// into the event's Outcome; the event source is never blocked or nacked.
package replicate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"posmirror/internal/entity"
	"posmirror/internal/event"
	"posmirror/internal/metrics"
	"posmirror/internal/normalize"
)

// Warehouse is the replica write surface the dispatcher drives.
type Warehouse interface {
	Exists(ctx context.Context, cfg entity.Config, key string) (bool, error)
	Upsert(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error
	DeleteThenInsert(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error
	AppendBestEffort(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error
	DeleteByKey(ctx context.Context, cfg entity.Config, key string) error
}

type Dispatcher struct {
	wh   Warehouse
	log  *zap.Logger
	mreg *metrics.Registry
}

func NewDispatcher(wh Warehouse, log *zap.Logger, mreg *metrics.Registry) *Dispatcher {
	return &Dispatcher{wh: wh, log: log, mreg: mreg}
}

// Dispatch handles one change event to a terminal outcome. It never returns
// an error: failures are classified, logged, counted, and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.ChangeEvent) Outcome {
	out := Outcome{Entity: ev.EntityType, Key: ev.Key, Kind: ev.Kind}

	cfg, ok := entity.Lookup(ev.EntityType)
	if !ok {
		out.Status = StatusFailed
		out.ErrKind = KindConfig
		d.observe(out)
		return out
	}

	switch ev.Kind {
	case event.KindDeleted:
		out = d.handleDelete(ctx, cfg, out)
	case event.KindCreated:
		out = d.handleCreate(ctx, cfg, ev, out)
	default:
		out = d.handleUpdate(ctx, cfg, ev, out)
	}
	d.observe(out)
	return out
}

func (d *Dispatcher) handleCreate(ctx context.Context, cfg entity.Config, ev event.ChangeEvent, out Outcome) Outcome {
	rec := normalize.Record(cfg, ev.Key, ev.AfterImage)

	exists, err := d.wh.Exists(ctx, cfg, ev.Key)
	if err != nil {
		// No optimistic write: a failed check aborts the event.
		d.mreg.ExistsFailures.Inc()
		out.Status = StatusFailed
		out.ErrKind = KindIdempotencyCheck
		out.Err = err
		return out
	}
	if exists {
		out.Status = StatusSkippedDuplicate
		return out
	}

	if err := d.write(ctx, cfg, ev.Key, rec); err != nil {
		if cfg.Strategy != entity.MergeUpsert {
			// Delete-then-reinsert is already non-atomic; appending after a
			// failure could leave a duplicate row group.
			out.Status = StatusFailed
			out.ErrKind = KindWrite
			out.Err = err
			return out
		}
		if ferr := d.wh.AppendBestEffort(ctx, cfg, ev.Key, rec); ferr != nil {
			out.Status = StatusFailed
			out.ErrKind = KindFallbackWrite
			out.Err = ferr
			return out
		}
		out.Status = StatusFallbackApplied
		out.Err = err
		return out
	}
	out.Status = StatusApplied
	return out
}

func (d *Dispatcher) handleUpdate(ctx context.Context, cfg entity.Config, ev event.ChangeEvent, out Outcome) Outcome {
	// Full after-image overwrite, never a partial patch. No idempotency
	// check and no fallback: replaying an update is harmless.
	rec := normalize.Record(cfg, ev.Key, ev.AfterImage)
	if err := d.write(ctx, cfg, ev.Key, rec); err != nil {
		out.Status = StatusFailed
		out.ErrKind = KindWrite
		out.Err = err
		return out
	}
	out.Status = StatusApplied
	return out
}

func (d *Dispatcher) handleDelete(ctx context.Context, cfg entity.Config, out Outcome) Outcome {
	if err := d.wh.DeleteByKey(ctx, cfg, out.Key); err != nil {
		out.Status = StatusFailed
		out.ErrKind = KindDelete
		out.Err = err
		return out
	}
	out.Status = StatusApplied
	return out
}

func (d *Dispatcher) write(ctx context.Context, cfg entity.Config, key string, rec map[string]any) error {
	t0 := time.Now()
	var err error
	if cfg.Strategy == entity.DeleteThenReinsert {
		err = d.wh.DeleteThenInsert(ctx, cfg, key, rec)
	} else {
		err = d.wh.Upsert(ctx, cfg, key, rec)
	}
	if err == nil {
		d.mreg.WriteLatencySec.Observe(time.Since(t0).Seconds())
	}
	return err
}

func (d *Dispatcher) observe(out Outcome) {
	d.mreg.Events.WithLabelValues(string(out.Entity), string(out.Kind)).Inc()
	fields := []zap.Field{
		zap.String("entity", string(out.Entity)),
		zap.String("key", out.Key),
		zap.String("kind", string(out.Kind)),
		zap.String("status", string(out.Status)),
	}
	switch out.Status {
	case StatusApplied:
		d.mreg.Applied.Inc()
		d.log.Info("event applied", fields...)
	case StatusSkippedDuplicate:
		d.mreg.SkippedDuplicate.Inc()
		d.log.Info("duplicate create skipped", fields...)
	case StatusFallbackApplied:
		d.mreg.FallbackApplied.Inc()
		d.log.Warn("primary write failed, fallback append succeeded",
			append(fields, zap.Error(out.Err))...)
	case StatusFailed:
		d.mreg.Failed.Inc()
		d.log.Error("event dropped",
			append(fields, zap.String("error_kind", string(out.ErrKind)), zap.Error(out.Err))...)
	}
}
