package config

import (
	"time"
)

// Values wraps a map[string]any for type-safe value extraction.
// Accessors return the default if the key is missing or the value cannot be
// converted to the requested type.
type Values struct {
	data   map[string]any
	source string
}

// New creates Values from the given map.
// If data is nil, empty Values are returned.
func New(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (v Values) String(key, defaultVal string) string {
	raw, ok := v.data[key]
	if !ok {
		return defaultVal
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration ("250ms", "5m")
//   - int, int64: interpreted as milliseconds
//   - float64: interpreted as milliseconds, only if integral
//   - time.Duration: used directly
func (v Values) Duration(key string, defaultVal time.Duration) time.Duration {
	if d, ok := v.duration(key); ok {
		return d
	}
	return defaultVal
}

func (v Values) duration(key string) (time.Duration, bool) {
	raw, ok := v.data[key]
	if !ok {
		return 0, false
	}
	switch val := raw.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d, true
		}
	case int:
		return time.Duration(val) * time.Millisecond, true
	case int64:
		return time.Duration(val) * time.Millisecond, true
	case float64:
		if val == float64(int64(val)) {
			return time.Duration(val) * time.Millisecond, true
		}
	case time.Duration:
		return val, true
	}
	return 0, false
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (v Values) Bool(key string, defaultVal bool) bool {
	raw, ok := v.data[key]
	if !ok {
		return defaultVal
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int, only if there is no fractional part
func (v Values) Int(key string, defaultVal int) int {
	if n, ok := v.int(key); ok {
		return n
	}
	return defaultVal
}

func (v Values) int(key string) (int, bool) {
	raw, ok := v.data[key]
	if !ok {
		return 0, false
	}
	switch val := raw.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val == float64(int(val)) {
			return int(val), true
		}
	}
	return 0, false
}

// Section returns the nested map under key as Values. A missing or
// non-map value yields empty Values.
func (v Values) Section(key string) Values {
	switch val := v.data[key].(type) {
	case map[string]any:
		return New(val)
	default:
		return New(nil)
	}
}

// Has returns true if the key exists.
func (v Values) Has(key string) bool {
	_, ok := v.data[key]
	return ok
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (v Values) Raw() map[string]any {
	return v.data
}
