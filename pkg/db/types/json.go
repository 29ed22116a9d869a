package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONValue renders v as a JSON text parameter suitable for jsonb columns.
func JSONValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}

// ScanJSON decodes a jsonb (or sqlite text) column into dest. NULL leaves dest untouched.
func ScanJSON(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("json column: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
