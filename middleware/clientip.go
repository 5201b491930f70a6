package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc derives the caller address recorded on audit events.
type ClientIPFunc func(r *http.Request) string

// ClientIP returns the RemoteAddr host. Forwarding headers are ignored; use
// TrustedProxies when running behind a reverse proxy.
func ClientIP(r *http.Request) string {
	return remoteHost(r.RemoteAddr)
}

// TrustedProxies returns a ClientIPFunc that honours X-Forwarded-For only
// when the direct peer is inside one of cidrs. Hops are walked right to left
// and the first address outside cidrs is the client. Bare IPs are accepted
// as single-host prefixes. With no cidrs the result behaves like ClientIP.
func TrustedProxies(cidrs []string) (ClientIPFunc, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, p)
	}
	if len(prefixes) == 0 {
		return ClientIP, nil
	}

	trusted := func(addr netip.Addr) bool {
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := remoteHost(r.RemoteAddr)
		addr, err := netip.ParseAddr(peer)
		if err != nil || !trusted(addr) {
			return peer
		}

		client := addr
		hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			client = hop
			if !trusted(hop) {
				break
			}
		}
		return client.Unmap().String()
	}, nil
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
