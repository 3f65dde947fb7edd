package database

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// decodeInto unmarshals a JSON row (or array of rows) into dest; nil dest is a no-op.
func decodeInto(raw []byte, dest interface{}) error {
	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}
	return nil
}

// firstRow picks the first element of a JSON array of rows.
func firstRow(raw []byte) (json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

// formatValue renders a filter value the way PostgREST and text parameters expect.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return "null"
		}
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	// named string types (statuses, codes) and anything else JSON-able
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.Trim(string(raw), `"`)
}

// inValues flattens the variadic values of an In filter.
func inValues(v interface{}) []string {
	switch vals := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			out = append(out, formatValue(item))
		}
		return out
	case []string:
		return vals
	}
	return []string{formatValue(v)}
}

// canonical converts a Go value into its JSON-decoded form (string, float64,
// bool, nil, []interface{}, map[string]interface{}).
func canonical(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}
