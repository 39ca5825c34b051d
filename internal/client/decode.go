package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// List is a decoded collection response. The API answers either with a bare
// JSON array or with a paged object {results, count, next, previous}.
type List struct {
	Items    []map[string]any
	Count    int64
	Next     string
	Previous string
}

type pagedList struct {
	Results  []map[string]any `json:"results"`
	Count    any              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
}

// UnmarshalJSON accepts both list shapes. Count falls back to the number of
// items when the server omits it or sends something non-numeric.
func (l *List) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*l = List{}

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return nil
	case trimmed[0] == '[':
		var items []map[string]any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("client: decode list: %w", err)
		}
		l.Items = compact(items)
		l.Count = int64(len(l.Items))
		return nil
	}

	var page pagedList
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return fmt.Errorf("client: decode page: %w", err)
	}
	l.Items = compact(page.Results)
	if n, ok := toInt(page.Count); ok {
		l.Count = n
	} else {
		l.Count = int64(len(l.Items))
	}
	if page.Next != nil {
		l.Next = *page.Next
	}
	if page.Previous != nil {
		l.Previous = *page.Previous
	}
	return nil
}

// compact drops null entries so callers never see nil maps.
func compact(items []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

type unreadCount struct {
	UnreadCount any `json:"unread_count"`
}

// count returns the numeric unread count, or 0 when absent or malformed.
func (u unreadCount) count() int {
	n, ok := toInt(u.UnreadCount)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
