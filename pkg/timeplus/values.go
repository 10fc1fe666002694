package timeplus

import (
	"fmt"
	"strconv"
	"time"
)

// getString safely reads a string column from a query row
func getString(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	case nil:
	default:
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// getFloat reads a numeric column as float64
func getFloat(row map[string]interface{}, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// getBool reads a bool column; numeric 0/1 is accepted as well
func getBool(row map[string]interface{}, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case uint8:
		return v != 0
	case int64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// getTime extracts a time.Time value from a query row
func getTime(row map[string]interface{}, key string) time.Time {
	if val, ok := row[key]; ok && val != nil {
		if t, err := parseTimeplus(val); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseTimeplus parses a Timeplus datetime value into a time.Time
func parseTimeplus(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
		return time.Time{}, fmt.Errorf("nil time")
	case string:
		layouts := []string{
			time.RFC3339Nano,
			timeLayout,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05.999999999",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse time string: %s", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported time type: %T", val)
	}
}
