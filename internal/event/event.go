package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Type identifies a tracked record type replicated to the warehouse.
type Type string

const (
	TypeOrder           Type = "order"
	TypeLineGroup       Type = "lineGroup"
	TypeProduct         Type = "product"
	TypeSellingTracking Type = "sellingTracking"
)

// Kind is the mutation kind carried by a change event.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// ChangeEvent is one source-store mutation. AfterImage is the full document
// state following the mutation; it is absent for deletes. Values keep their
// wire shapes (json.Number for numerics, nested maps for sub-records) until
// the normalizer coerces them.
type ChangeEvent struct {
	EntityType Type           `json:"entityType" validate:"required,oneof=order lineGroup product sellingTracking"`
	Key        string         `json:"key" validate:"required"`
	Kind       Kind           `json:"kind" validate:"required,oneof=created updated deleted"`
	AfterImage map[string]any `json:"afterImage,omitempty"`
}

var validate = validator.New()

// Decode parses a change event from its JSON wire form. Numbers are decoded
// as json.Number so exact decimals survive until coercion.
func Decode(b []byte) (ChangeEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var ev ChangeEvent
	if err := dec.Decode(&ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if err := validate.Struct(&ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("validate event: %w", err)
	}
	if ev.Kind != KindDeleted && ev.AfterImage == nil {
		return ChangeEvent{}, fmt.Errorf("validate event: %s event for %q has no after-image", ev.Kind, ev.Key)
	}
	return ev, nil
}
