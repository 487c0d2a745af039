package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var ErrInvalidURL = errors.New("webhook URL cannot point to localhost, loopback, or private IP addresses")

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ValidateURL accepts absolute http(s) URLs whose host is not local or
// private, neither literally nor, when resolver is non-nil, after resolution.
func ValidateURL(ctx context.Context, raw string, resolver Resolver) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid webhook URL: scheme must be http or https, got %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.New("invalid webhook URL: missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return ErrInvalidURL
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blocked(addr) {
			return ErrInvalidURL
		}
		return nil
	}

	if resolver == nil {
		return nil
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve webhook host %s: %w", host, err)
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok || blocked(addr) {
			return ErrInvalidURL
		}
	}
	return nil
}

func blocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsUnspecified() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast()
}
