package security

import (
	"fmt"
	"net"
	"strings"
)

// reservedNets are ranges that the net.IP predicates do not cover but that
// must never be fetch targets: multicast, class E, benchmarking, and the
// IETF TEST-NET documentation ranges.
var reservedNets = mustParseCIDRs(
	"0.0.0.0/8",       // "this network"
	"100.64.0.0/10",   // carrier-grade NAT (RFC 6598)
	"192.0.0.0/24",    // IETF protocol assignments
	"192.0.2.0/24",    // TEST-NET-1
	"198.18.0.0/15",   // benchmarking (RFC 2544)
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"224.0.0.0/4",     // multicast
	"240.0.0.0/4",     // reserved / class E
	"ff00::/8",        // IPv6 multicast
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("BUG: invalid built-in CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// CheckIP returns an error if the address must not be fetched from:
// loopback, link-local, private (RFC 1918 / RFC 4193), unspecified, or a
// reserved/benchmarking range. IPv4-mapped IPv6 addresses are unwrapped
// first so ::ffff:127.0.0.1 is classified as 127.0.0.1.
//
// Classification uses the structured net.IP predicates plus a CIDR table,
// never textual matching: the set of string spellings for a single address
// is too large to enumerate safely.
func CheckIP(ip net.IP) error {
	if ip == nil {
		return fmt.Errorf("not an IP address")
	}

	// Normalize IPv4-mapped IPv6 (::ffff:a.b.c.d -> a.b.c.d).
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback address: %s", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified address: %s", ip)
	case ip.IsPrivate():
		return fmt.Errorf("private address: %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address: %s", ip)
	}

	for _, n := range reservedNets {
		if n.Contains(ip) {
			return fmt.Errorf("reserved address: %s", ip)
		}
	}

	return nil
}

// IsDisallowedIP reports whether the address falls in a blocked range.
func IsDisallowedIP(ip net.IP) bool {
	return CheckIP(ip) != nil
}

// ParseIPLiteral parses a host string as an IP literal, accepting the
// bracketed IPv6 form used in URLs ([::1]). Returns nil if the host is
// not an IP literal.
func ParseIPLiteral(host string) net.IP {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return net.ParseIP(host)
}
