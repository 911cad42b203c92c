package domain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is exactly a 0x-prefixed 40 hex digit address.
func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

// SameAddress compares two addresses ignoring checksum case. Non-address
// inputs never match.
func SameAddress(a, b string) bool {
	if !IsAddress(a) || !IsAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// ChecksumAddress returns the EIP-55 form of addr, or addr unchanged when it
// is not an address.
func ChecksumAddress(addr string) string {
	if !IsAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

// NormalizeHandle trims whitespace and a leading "@".
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
