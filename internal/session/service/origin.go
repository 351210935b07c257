package service

import (
	"net/netip"
	"strings"
)

// sameIP reports whether a and b are the same IP address, treating IPv4-mapped IPv6 as IPv4.
// Unparseable input never matches.
func sameIP(a, b string) bool {
	ia, err := netip.ParseAddr(strings.TrimSpace(a))
	if err != nil {
		return false
	}
	ib, err := netip.ParseAddr(strings.TrimSpace(b))
	if err != nil {
		return false
	}
	return ia.Unmap() == ib.Unmap()
}
