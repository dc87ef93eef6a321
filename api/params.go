package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// dateLayout is the wire format for date filters.
const dateLayout = "2006-01-02"

// queryInt parses an optional integer query parameter. An absent or empty
// parameter yields the fallback; a malformed one is an error.
func queryInt(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// queryInt64 parses an optional int64 query parameter into a pointer; nil
// means absent.
func queryInt64(q url.Values, key string) (*int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

// queryBool parses an optional boolean query parameter into a pointer; nil
// means absent (tri-state filters depend on the distinction).
func queryBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}
	return &v, nil
}

// queryString returns an optional string query parameter as a pointer; nil
// means absent.
func queryString(q url.Values, key string) *string {
	raw := q.Get(key)
	if raw == "" {
		return nil
	}
	return &raw
}

// queryDate parses an optional YYYY-MM-DD query parameter into a pointer.
func queryDate(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", key)
	}
	return &v, nil
}

// pathID parses the {id} path segment.
func pathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return id, nil
}
