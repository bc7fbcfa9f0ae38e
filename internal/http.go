package app

import (
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"volunteer-attendance/internal/config"
	"volunteer-attendance/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")

	// Sync results must never be cached
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// IPAccessControl only lets clients from the allowed networks through.
// Loopback is always allowed outside release mode.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	if os.Getenv("GIN_MODE") != "release" {
		allowedCIDRs = append(allowedCIDRs, "127.0.0.0/8", "::1/128")
	}

	var allowed []netip.Prefix
	for _, cidr := range allowedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		allowed = append(allowed, prefix.Masked())
	}

	return func(c *gin.Context) {
		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil {
			addr = addr.Unmap()
			for _, prefix := range allowed {
				if prefix.Contains(addr) {
					c.Next()
					return
				}
			}
		}
		slog.Warn("IP not allowed", "ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "status": "error", "message": "Forbidden"})
	}
}

// ParseNetworks splits a comma separated CIDR list, dropping blanks.
func ParseNetworks(list string) []string {
	var cidrs []string
	for cidr := range strings.SplitSeq(list, ",") {
		// Remove spaces and ignore empty sets
		if cidr := strings.TrimSpace(cidr); cidr != "" {
			cidrs = append(cidrs, cidr)
		}
	}
	return cidrs
}

func HTTPServer(cfg *config.Config, syncer routes.Syncer, store routes.SchemaVersioner, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	if cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", cfg.AllowedNetworks)
		r.Use(IPAccessControl(ParseNetworks(cfg.AllowedNetworks)))
	}
	r.Use(securityHeaders)
	r.Use(routes.ErrorHandler())

	routes.Health(&r.RouterGroup, store)
	routes.Metrics(&r.RouterGroup, gatherer)
	routes.SyncApi(r.Group("/api/sync"), syncer)

	return r
}
