// Package jsonutil provides tolerant JSON decoding for rows that
// out-of-band tooling may have written with loosely typed values
// (numbers as strings, string ids in id lists).
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// FlexibleInt64 converts a json.RawMessage to int64, accepting both JSON
// numbers and numeric strings. Returns 0 and false for null, empty, or
// non-numeric input.
func FlexibleInt64(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}

	return 0, false
}

// FlexibleInt64Slice decodes a JSON array into int64s, skipping elements
// that cannot be interpreted as numbers. The second return reports how many
// elements were dropped, so callers can log the degradation.
func FlexibleInt64Slice(raw json.RawMessage) ([]int64, int) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, 0
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0
	}

	out := make([]int64, 0, len(elems))
	dropped := 0
	for _, e := range elems {
		n, ok := FlexibleInt64(e)
		if !ok {
			dropped++
			continue
		}
		out = append(out, n)
	}
	return out, dropped
}
