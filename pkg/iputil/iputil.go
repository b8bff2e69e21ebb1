// Package iputil provides IP address and CIDR helpers shared by the
// blocklist services.
package iputil

import "net"

// IsValidIP reports whether s is a valid IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsValidCIDR reports whether s is a valid CIDR range.
func IsValidCIDR(s string) bool {
	_, _, err := net.ParseCIDR(s)
	return err == nil
}

// InCIDR reports whether ip falls inside the given CIDR range.
// Invalid inputs never match.
func InCIDR(ip, cidr string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return ipNet.Contains(parsed)
}
