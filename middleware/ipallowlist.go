package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// IPAllowlist restricts a route group to the given client addresses.
// Entries may be single IPs ("10.0.0.5") or CIDR ranges ("10.0.0.0/24");
// malformed entries are skipped. An empty list allows everyone, which is
// the development default.
func IPAllowlist(entries []string) gin.HandlerFunc {
	var prefixes []netip.Prefix
	restricted := false
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		restricted = true
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p)
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}

	return func(c *gin.Context) {
		// A configured list that parsed to nothing fails closed rather
		// than opening the admin surface on a typo.
		if !restricted {
			c.Next()
			return
		}
		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil {
			for _, p := range prefixes {
				if p.Contains(addr) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}
