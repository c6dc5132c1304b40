package webhook

import (
	"net"
	"net/url"
	"strings"
)

// GuardResult classifies a candidate delivery URL.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Resolver resolves a hostname to its addresses. Injected in tests; the
// default uses the system resolver.
type Resolver func(host string) ([]net.IP, error)

var blockedHostnames = map[string]struct{}{
	"localhost": {},
}

var blockedHostSuffixes = []string{
	".localhost",
	".local",
}

// blockedNetworks covers ranges that net.IP predicate methods do not:
// CGNAT, benchmarking, documentation and reserved space.
var blockedNetworks = mustParseCIDRs(
	"100.64.0.0/10",  // CGNAT
	"192.0.0.0/24",   // IETF protocol assignments
	"192.0.2.0/24",   // TEST-NET-1
	"198.18.0.0/15",  // benchmarking
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24", // TEST-NET-3
	"240.0.0.0/4",    // reserved
	"2001:db8::/32",  // IPv6 documentation
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// ValidateDestination checks whether a URL points at an externally reachable
// host. It is called before every delivery attempt, not just at endpoint
// registration, because DNS answers change between registration and delivery.
func ValidateDestination(rawURL string) GuardResult {
	return ValidateDestinationWithResolver(rawURL, net.LookupIP)
}

// ValidateDestinationWithResolver is ValidateDestination with an injectable
// resolver for tests.
func ValidateDestinationWithResolver(rawURL string, resolve Resolver) GuardResult {
	u, err := url.Parse(rawURL)
	if err != nil {
		return GuardResult{Reason: "malformed URL"}
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return GuardResult{Reason: "scheme must be http or https"}
	}

	if u.User != nil {
		return GuardResult{Reason: "URL must not contain credentials"}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return GuardResult{Reason: "URL has no host"}
	}

	if _, ok := blockedHostnames[host]; ok {
		return GuardResult{Reason: "hostname is blocked"}
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return GuardResult{Reason: "hostname resolves to a private domain"}
		}
	}

	// Literal IP: classify directly.
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if isBlockedIP(ip) {
			return GuardResult{Reason: "IP address is private or reserved"}
		}
		return GuardResult{Allowed: true}
	}

	// Hostname: resolve and reject if any answer is private. Checking every
	// address defends against DNS rebinding.
	ips, err := resolve(host)
	if err != nil || len(ips) == 0 {
		return GuardResult{Reason: "hostname could not be resolved"}
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return GuardResult{Reason: "hostname resolves to a private address"}
		}
	}

	return GuardResult{Allowed: true}
}

// isBlockedIP reports whether the address must never receive a delivery.
// IPv4-mapped IPv6 addresses are unwrapped by the net.IP predicates.
func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() {
		return true
	}
	for _, n := range blockedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
