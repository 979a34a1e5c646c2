package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// CompGrid maps a comp level (street, release, manager...) to a govaluate
// expression yielding a commission percentage. Stored as JSONB.
type CompGrid map[string]string

func (g CompGrid) Value() (driver.Value, error) {
	return json.Marshal(g)
}

func (g *CompGrid) Scan(value interface{}) error {
	return scanJSON(value, g)
}

// StringList stores a JSON array of strings in a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// JSONMap stores an arbitrary JSON object in a JSONB column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported JSONB source type")
	}
}
