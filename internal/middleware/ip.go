package middleware

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// maxIPLength is the longest textual IPv6 form, zone excluded.
const maxIPLength = 45

// TrustProxies makes c.IP() honour header, but only for requests whose
// socket peer is one of proxies. With no proxies configured the header is
// never read. The first well-formed address in the header wins, so the proxy
// must overwrite it rather than append to it.
func TrustProxies(cfg fiber.Config, header string, proxies []string) fiber.Config {
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
	return cfg
}

// ClientIP is the caller address used for rate limiting, sessions and audit.
// It comes from c.IP(), so forwarding headers count only behind a trusted
// proxy, and anything that is not a well-formed address falls back to the
// socket peer.
func ClientIP(c *fiber.Ctx) string {
	ip := strings.TrimSpace(c.IP())
	if len(ip) <= maxIPLength {
		if parsed := net.ParseIP(ip); parsed != nil {
			return parsed.String()
		}
	}
	return c.Context().RemoteIP().String()
}
