package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// countryHeader is stamped by the edge proxy with the resolved ISO country
// code of the client.
const countryHeader = "X-Country-Code"

// IPBlockChecker answers whether an address is on the blocklist.
type IPBlockChecker interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// GeoChecker answers whether a country may reach the service.
type GeoChecker interface {
	Allowed(ctx context.Context, countryCode string) (bool, error)
}

// SecurityGate rejects requests from blocked addresses and blocked
// countries before they reach any handler. The gate fails closed: if the
// blocklist cannot be consulted, the request is refused rather than waved
// through.
func SecurityGate(blocks IPBlockChecker, geo GeoChecker, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)

			blocked, err := blocks.IsBlocked(r.Context(), ip)
			if err != nil {
				logger.Error("block check failed, refusing request",
					slog.String("ip", ip),
					slog.String("error", err.Error()),
				)
				pkghttp.WriteServiceUnavailable(w, "unable to verify request origin")
				return
			}
			if blocked {
				pkghttp.WriteForbidden(w, "access denied")
				return
			}

			if country := strings.TrimSpace(r.Header.Get(countryHeader)); country != "" {
				allowed, err := geo.Allowed(r.Context(), country)
				if err != nil {
					logger.Error("geo check failed, refusing request",
						slog.String("country", country),
						slog.String("error", err.Error()),
					)
					pkghttp.WriteServiceUnavailable(w, "unable to verify request origin")
					return
				}
				if !allowed {
					pkghttp.WriteForbidden(w, "access denied")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
