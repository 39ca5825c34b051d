package notify

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// lookup walks a dotted path through nested maps. Any non-map hop or missing key
// reports false; nil maps are safe to walk.
func lookup(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// truthy follows the loose truthiness the backend payloads were written against:
// nil, false, zero numbers and empty strings are false, everything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	}
	return true
}

// scalarString renders strings and numbers; maps, slices and nil are rejected.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// firstString returns the first truthy scalar found at the supplied paths.
func firstString(raw map[string]any, paths ...string) string {
	for _, path := range paths {
		v, ok := lookup(raw, path)
		if !ok || !truthy(v) {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s
		}
	}
	return ""
}

// firstTruthy reports whether any of the paths holds a truthy value.
func firstTruthy(raw map[string]any, paths ...string) bool {
	for _, path := range paths {
		if v, ok := lookup(raw, path); ok && truthy(v) {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes seen on the wire: RFC 3339 with or without
// zone, space separated datetimes, plain dates and unix seconds. Unknown shapes
// return the zero time.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC()
	}
	return time.Time{}
}
