package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/mwhitfield/aegis/internal/models"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// wafBodyLimit caps how much of the body is buffered for inspection.
const wafBodyLimit = 64 << 10

// WafEvaluator evaluates a request against the active WAF rules.
type WafEvaluator interface {
	Evaluate(ctx context.Context, req *models.WafRequest) (*models.WafValidationResult, error)
}

// WafGate inspects requests before routing. The body is buffered up to a
// limit and restored for the handler. The gate fails closed: a WAF
// evaluation failure refuses the request rather than waving it through.
// Per-rule pattern errors stay isolated inside the evaluator.
func WafGate(waf WafEvaluator, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(io.LimitReader(r.Body, wafBodyLimit))
				rest, _ := io.ReadAll(r.Body)
				r.Body.Close()
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), bytes.NewReader(rest)))
			}

			queryParams := map[string]string{}
			for key, values := range r.URL.Query() {
				if len(values) > 0 {
					queryParams[key] = values[0]
				}
			}

			headers := map[string]string{}
			for key, values := range r.Header {
				if key == "Authorization" || key == "Cookie" {
					continue
				}
				if len(values) > 0 {
					headers[key] = values[0]
				}
			}

			result, err := waf.Evaluate(r.Context(), &models.WafRequest{
				SourceIP:    pkghttp.ExtractClientIP(r, ipConfig),
				Method:      r.Method,
				Path:        r.URL.Path,
				Body:        string(body),
				QueryParams: queryParams,
				Headers:     headers,
				UserAgent:   r.UserAgent(),
			})
			if err != nil {
				logger.Error("waf evaluation failed, refusing request", slog.String("error", err.Error()))
				pkghttp.WriteServiceUnavailable(w, "unable to inspect request")
				return
			}
			if !result.Allowed {
				pkghttp.WriteForbidden(w, "request rejected")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
