package warehouse

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB carries a nested sub-record or repeated substructure into a jsonb
// column.
type JSONB struct {
	Data any
}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, &j.Data)
}
