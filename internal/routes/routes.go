package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/handlers"
	"github.com/mwhitfield/aegis/internal/middleware"
)

// RegisterRoutes registers all application routes under /v1.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
	oauthHandler *handlers.OAuthHandler,
	securityHandler *handlers.SecurityHandler,
	wafHandler *handlers.WafHandler,
	validator auth.AccessValidator,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Route("/v1", func(r chi.Router) {
		// Public credential endpoints, tightly rate limited per IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimitConfig))
			r.Post("/auth/otp/request", authHandler.RequestCode)
			r.Post("/auth/otp/login", authHandler.Login)
			r.Post("/auth/oauth/login", authHandler.OAuthLogin)
			r.Post("/auth/2fa/login", authHandler.CompleteTwoFactor)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		// Introspection is for trusted internal callers; it carries no
		// credentials of its own, so it stays outside the auth group.
		r.Post("/auth/introspect", authHandler.Introspect)

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(validator))

			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/sessions", sessionHandler.List)
			r.Delete("/sessions/{sessionID}", sessionHandler.Revoke)
			r.Post("/sessions/revoke-all", sessionHandler.RevokeAll)

			r.Post("/2fa/setup", twoFactorHandler.Setup)
			r.Post("/2fa/activate", twoFactorHandler.Activate)
			r.Post("/2fa/disable", twoFactorHandler.Disable)
			r.Post("/2fa/backup-codes", twoFactorHandler.RegenerateBackupCodes)
			r.Get("/2fa/status", twoFactorHandler.Status)

			r.Get("/oauth/connections", oauthHandler.List)
			r.Post("/oauth/connections", oauthHandler.Link)
			r.Delete("/oauth/connections/{provider}", oauthHandler.Unlink)

			// Security operations, admin only.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole("admin"))

				r.Get("/security/dashboard", securityHandler.Dashboard)
				r.Get("/security/events", securityHandler.ListEvents)
				r.Post("/security/events/{eventID}/resolve", securityHandler.ResolveEvent)
				r.Get("/security/rules", securityHandler.ListThreatRules)
				r.Post("/security/rules", securityHandler.CreateThreatRule)
				r.Delete("/security/rules/{ruleID}", securityHandler.DeleteThreatRule)
				r.Get("/security/blocked-ips", securityHandler.ListBlockedIPs)
				r.Post("/security/blocked-ips", securityHandler.BlockIP)
				r.Get("/security/blocked-ips/check", securityHandler.CheckIP)
				r.Delete("/security/blocked-ips/{blockID}", securityHandler.UnblockIP)
				r.Get("/security/geo-rules", securityHandler.ListGeoRules)
				r.Post("/security/geo-rules", securityHandler.CreateGeoRule)
				r.Delete("/security/geo-rules/{ruleID}", securityHandler.DeleteGeoRule)

				r.Get("/waf/rules", wafHandler.ListRules)
				r.Post("/waf/rules", wafHandler.CreateRule)
				r.Get("/waf/rules/{ruleID}", wafHandler.GetRule)
				r.Put("/waf/rules/{ruleID}", wafHandler.UpdateRule)
				r.Patch("/waf/rules/{ruleID}", wafHandler.ToggleRule)
				r.Delete("/waf/rules/{ruleID}", wafHandler.DeleteRule)
				r.Get("/waf/events", wafHandler.ListEvents)
				r.Get("/waf/config", wafHandler.GetConfig)
				r.Get("/waf/stats", wafHandler.Stats)
				r.Post("/waf/validate", wafHandler.Validate)
			})
		})
	})
}
