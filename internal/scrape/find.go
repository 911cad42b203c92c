package scrape

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

// FindNumber walks obj depth-first looking for numeric values whose field name
// contains one of keys, or string values that contain one of keys and parse as
// a number once non-numeric characters are stripped. Keys must be lower case.
// The last match visited wins.
func FindNumber(obj any, keys []string) (float64, bool) {
	var (
		best  float64
		found bool
	)
	walk(obj, func(k string, v any) {
		switch x := v.(type) {
		case float64:
			if !math.IsInf(x, 0) && !math.IsNaN(x) && containsAny(strings.ToLower(k), keys) {
				best, found = x, true
			}
		case string:
			if containsAny(strings.ToLower(x), keys) {
				if n, ok := stripNumber(x); ok {
					best, found = n, true
				}
			}
		}
	})
	return best, found
}

// FindInt is FindNumber restricted to integral numbers under matching field
// names.
func FindInt(obj any, keys []string) (int64, bool) {
	var (
		best  int64
		found bool
	)
	walk(obj, func(k string, v any) {
		x, ok := v.(float64)
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if !ok || x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return
		}
		if containsAny(strings.ToLower(k), keys) {
			best, found = int64(x), true
		}
	})
	return best, found
}

// walk visits every scalar leaf of obj with an explicit stack. Object keys
// are visited in sorted order so results are deterministic.
func walk(obj any, visit func(key string, v any)) {
	stack := []any{obj}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node := cur.(type) {
		case map[string]any:
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v := node[k]
				switch v.(type) {
				case map[string]any, []any:
					stack = append(stack, v)
				case nil:
				default:
					visit(k, v)
				}
			}
		case []any:
			for i, v := range node {
				switch v.(type) {
				case map[string]any, []any:
					stack = append(stack, v)
				case nil:
				default:
					visit(strconv.Itoa(i), v)
				}
			}
		}
	}
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// stripNumber drops everything but digits, '.' and '-' and parses the rest.
// An empty remainder reads as 0.
func stripNumber(s string) (float64, bool) {
	cleaned := nonNumericRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, true
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
