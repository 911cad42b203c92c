// Package scrape pulls addresses, handles and embedded page state out of
// Polymarket's server-rendered HTML. It is pattern matching over text, not an
// HTML parser; every function degrades to a zero value on unexpected input.
package scrape

import (
	"encoding/json"
	"regexp"
	"strconv"
)

var (
	addressRe    = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	handleRe     = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)
	nextDataRe   = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__"[^>]*>(.*?)</script>`)
	tradeCountRe = regexp.MustCompile(`(?i)([0-9][0-9,]*)\s*(?:trades|predictions)\b`)
)

// FirstAddress returns the first address-shaped substring of html.
func FirstAddress(html string) string {
	return addressRe.FindString(html)
}

// Addresses returns every distinct address-shaped substring in order of first
// appearance.
func Addresses(html string) []string {
	return uniq(addressRe.FindAllString(html, -1))
}

// FirstHandle returns the first @handle in html without the "@".
func FirstHandle(html string) string {
	m := handleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}

// Handles returns every distinct @handle in order of first appearance.
func Handles(html string) []string {
	matches := handleRe.FindAllStringSubmatch(html, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return uniq(out)
}

// NextData decodes the Next.js __NEXT_DATA__ payload embedded in html. It
// returns nil when the script tag is absent or its body is not JSON.
func NextData(html string) any {
	m := nextDataRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(m[1]), &v); err != nil {
		return nil
	}
	return v
}

// TradeCountText finds a displayed "N trades" figure in html.
func TradeCountText(html string) (int, bool) {
	m := tradeCountRe.FindStringSubmatch(html)
	if m == nil {
		return 0, false
	}
	digits := make([]byte, 0, len(m[1]))
	for i := 0; i < len(m[1]); i++ {
		if m[1][i] != ',' {
			digits = append(digits, m[1][i])
		}
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, false
	}
	return n, true
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
