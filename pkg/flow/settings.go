package flow

import (
	"fmt"
	"strconv"
)

// Settings is the GeneralSettingValues mapping of a configuration. Values are
// free-form JSON; the typed getters below stringify scalars the way the
// switch's variable protocol does.
type Settings map[string]any

// String returns the setting as a string, or def when absent. Numbers and
// booleans are formatted; nested structures fall back to fmt formatting.
func (s Settings) String(key, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the setting as an int, or def when absent or unparsable.
func (s Settings) Int(key string, def int) int {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the setting as a bool, or def when absent or unparsable.
func (s Settings) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}
