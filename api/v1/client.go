package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are consulted, in order, after X-Forwarded-For.
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// clientIP returns the best guess at the visitor's address. Public addresses
// reported by a proxy win; otherwise the socket peer is used as-is, even when
// private, so that LAN readers still get distinct fingerprints.
func clientIP(c *fiber.Ctx) string {
	if addr, ok := preferredAddr(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ok {
		return addr.String()
	}

	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if addr, ok := preferredAddr([]string{value}); ok {
				return addr.String()
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if addr, ok := preferredAddr(forwardedFor(forwarded)); ok {
			return addr.String()
		}
	}

	if addr, ok := parseAddr(c.Context().RemoteAddr().String()); ok {
		return addr.String()
	}
	return c.IP()
}

// preferredAddr picks the first public IPv4 address, or failing that the first
// public IPv6 address.
func preferredAddr(values []string) (netip.Addr, bool) {
	var v6 netip.Addr

	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || !isPublic(addr) {
			continue
		}
		if addr.Is4() {
			return addr, true
		}
		if !v6.IsValid() {
			v6 = addr
		}
	}

	return v6, v6.IsValid()
}

// parseAddr accepts bare, bracketed, quoted, zoned and host:port forms and
// unmaps IPv4-in-IPv6.
func parseAddr(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return netip.Addr{}, false
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().Unmap().WithZone(""), true
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return addr.Unmap().WithZone(""), true
	}

	if host, _, err := net.SplitHostPort(clean); err == nil && host != clean {
		return parseAddr(host)
	}

	return netip.Addr{}, false
}

func isPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}

// forwardedFor extracts the for= values of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var candidates []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				candidates = append(candidates, part[4:])
			}
		}
	}
	return candidates
}

// userAgent prefers the UA relayed by a server-side renderer over the caller's own.
func userAgent(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return c.Get(fiber.HeaderUserAgent)
}

// optionalHeader returns nil for absent or blank headers.
func optionalHeader(c *fiber.Ctx, name string) *string {
	value := strings.TrimSpace(c.Get(name))
	if value == "" {
		return nil
	}
	return &value
}
