package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/background"
	"github.com/mwhitfield/aegis/internal/cache"
	"github.com/mwhitfield/aegis/internal/config"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/handlers"
	middlewareCustom "github.com/mwhitfield/aegis/internal/middleware"
	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/internal/repositories"
	"github.com/mwhitfield/aegis/internal/routes"
	"github.com/mwhitfield/aegis/internal/services"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
	pkglogger "github.com/mwhitfield/aegis/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis (token blacklist, cooldowns, block verdict cache)
	redisCache, err := cache.New(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisCache.Close()

	// Initialize repositories
	sessionRepo := repositories.NewSessionRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	twoFactorRepo := repositories.NewTwoFactorRepository(db)
	oauthRepo := repositories.NewOAuthRepository(db)
	blockedIPRepo := repositories.NewBlockedIPRepository(db)
	geoRuleRepo := repositories.NewGeoRuleRepository(db)
	threatRuleRepo := repositories.NewThreatRuleRepository(db)
	threatEventRepo := repositories.NewThreatEventRepository(db)
	wafRuleRepo := repositories.NewWafRuleRepository(db)
	wafEventRepo := repositories.NewWafEventRepository(db)

	// Initialize token and TOTP managers
	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.Issuer,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Auth.TempTokenExpiry,
	)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.TwoFactor.EncryptionKey), cfg.TwoFactor.Issuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Passcode delivery
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	emailSender, err := services.NewEmailCodeSender(startupCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}
	senders := map[string]services.CodeSender{
		models.ChannelEmail: emailSender,
		models.ChannelSMS:   services.NewLogSMSCodeSender(logger),
	}

	// Initialize services
	otpService := services.NewOTPService(
		otpRepo,
		redisCache,
		senders,
		cfg.OTP.CodeLength,
		cfg.OTP.TTL,
		cfg.OTP.Cooldown,
		cfg.OTP.MaxAttempts,
		logger,
	)
	tokenService := services.NewTokenService(tokenManager, sessionRepo, redisCache, cfg.Auth.BlacklistSkew, logger)
	sessionService := services.NewSessionService(sessionRepo, cfg.Auth.SessionExpiryDays, logger)
	twoFactorService := services.NewTwoFactorService(twoFactorRepo, totpManager, cfg.TwoFactor.BackupCodeCount, logger)

	directory := services.NewHTTPUserDirectory(cfg.Directory.BaseURL, cfg.Directory.Timeout, logger)
	oauthService := services.NewOAuthService(oauthRepo, services.NewProviderVerifiers(), directory, logger)

	ipBlockService := services.NewIPBlockService(blockedIPRepo, redisCache, cfg.Security.BlockCacheTTL, auditLogger, logger)
	threatService := services.NewThreatService(threatEventRepo, threatRuleRepo, ipBlockService, geoRuleRepo, blockedIPRepo, auditLogger, logger)
	geoBlockService := services.NewGeoBlockService(geoRuleRepo, auditLogger, logger)
	wafService := services.NewWafService(wafRuleRepo, wafEventRepo, cfg.WAF.Enabled, cfg.WAF.Mode, auditLogger, logger)

	authService := services.NewAuthService(
		otpService,
		tokenService,
		sessionService,
		twoFactorService,
		oauthService,
		directory,
		threatService,
		auditLogger,
		logger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, tokenService, ipConfig)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	twoFactorHandler := handlers.NewTwoFactorHandler(twoFactorService)
	oauthHandler := handlers.NewOAuthHandler(oauthService)
	securityHandler := handlers.NewSecurityHandler(threatService, ipBlockService, geoBlockService)
	wafHandler := handlers.NewWafHandler(wafService)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		otpService,
		sessionService,
		twoFactorService,
		ipBlockService,
		threatService,
		wafService,
		time.Duration(cfg.Security.SessionRetentionDays)*24*time.Hour,
		cfg.Security.ThreatRetentionDays,
		cfg.Auth.CleanupInterval,
		logger,
	)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.SecurityGate(ipBlockService, geoBlockService, ipConfig, logger))
	router.Use(middlewareCustom.WafGate(wafService, ipConfig, logger))

	// Register routes
	routes.RegisterRoutes(router, authHandler, sessionHandler, twoFactorHandler, oauthHandler, securityHandler, wafHandler, tokenService)

	// Health check with database and redis
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		if err := redisCache.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","redis":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up","redis":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
