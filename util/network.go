package util

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ResolveAddr builds a host:port string, validating that the host is a
// numeric IP when noDNS is true.
func ResolveAddr(host string, port int, noDNS bool) (string, error) {
	if noDNS {
		if net.ParseIP(host) == nil {
			return "", fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// LookupHost resolves a hostname.  With noDNS it only accepts numeric IPs.
func LookupHost(ctx context.Context, host string, noDNS bool) ([]string, error) {
	if net.ParseIP(host) != nil {
		return []string{host}, nil
	}
	if noDNS {
		return nil, fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup for %q: %w", host, err)
	}
	return addrs, nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitServerAddr accepts "host", "host:port", "[v6]" or "[v6]:port"
// and fills in defaultPort when no port is given.
func SplitServerAddr(spec string, defaultPort int) (string, int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", 0, fmt.Errorf("empty server address")
	}

	host, portStr, err := net.SplitHostPort(spec)
	if err != nil {
		// No port: bare host or bracketed IPv6 literal.
		host = strings.TrimSuffix(strings.TrimPrefix(spec, "["), "]")
		if host == "" {
			return "", 0, fmt.Errorf("invalid server address %q", spec)
		}
		return host, defaultPort, nil
	}
	if host == "" {
		return "", 0, fmt.Errorf("server address %q has no host", spec)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid server port %q", portStr)
	}
	return host, port, nil
}
