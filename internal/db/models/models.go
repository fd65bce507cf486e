// Package models defines the database model types for Corebase.
// Each type corresponds to a database table and uses db struct tags for sqlx
// row scanning. Models are pure data types; business logic belongs in the
// service layer, query logic belongs in the repositories layer.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string stored as a JSONB array column.
type StringList []string

// Value implements driver.Valuer for JSONB storage.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB retrieval.
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: cannot scan %T into StringList", src)
	}
	return json.Unmarshal(data, (*[]string)(l))
}
