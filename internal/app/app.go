package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkosyakov/admin-auth-service/internal/config"
	"github.com/mkosyakov/admin-auth-service/internal/handler"
	"github.com/mkosyakov/admin-auth-service/internal/repository"
	"github.com/mkosyakov/admin-auth-service/internal/service"
	"github.com/mkosyakov/admin-auth-service/internal/utils"
	"github.com/mkosyakov/admin-auth-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	tokenManager := utils.NewTokenManager(
		cfg.JWT.Secret,
		cfg.JWT.SessionTokenExpiry.Duration,
		cfg.JWT.PendingTokenExpiry.Duration,
	)

	policy := service.NewPasswordPolicy(
		repos.PasswordHistory,
		cfg.Security.PasswordMinLength,
		cfg.Security.PasswordHistory,
		cfg.Security.PasswordChangeInterval.Duration,
	)

	notifier := service.NewNotifier(
		service.NewSMTPEmailSender(cfg.SMTP),
		service.NewHTTPSMSSender(cfg.SMS),
		cfg.Admin.URL,
		infra.Logger(),
	)

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	authService := service.NewAuthService(
		repos.User,
		repos.Role,
		tokenManager,
		policy,
		notifier,
		cfg.Security.BCryptCost,
		infra.Logger(),
	)

	userService := service.NewUserService(
		repos.User,
		repos.Role,
		policy,
		notifier,
		cfg.Security.BCryptCost,
	)

	authHandler := handler.NewAuthHandler(authService, userService)
	userHandler := handler.NewUserHandler(userService)

	router := gin.Default()
	router.Use(otelgin.Middleware("admin-auth-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))
	router.Use(handler.PendingTokenGate(tokenManager))

	setupRoutes(router, cfg, authHandler, userHandler, authService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	authService service.AuthService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	// OTP-sending endpoints share one sliding window per identity:path:ip.
	otpLimit := handler.OTPRateLimitMiddleware(rateLimiter, cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration)

	admin := router.Group("/admin")
	{
		admin.POST("/login", otpLimit, authHandler.Login)
		admin.POST("/register", otpLimit, authHandler.Register)
		admin.POST("/register-admin", authHandler.RegisterAdmin)
		admin.POST("/verify-otp", otpLimit, authHandler.VerifyOTP)
		admin.POST("/resend-otp", otpLimit, authHandler.ResendOTP)
		admin.POST("/renew-token", authHandler.RenewToken)
		admin.GET("/registration-info", authHandler.RegistrationInfo)
		admin.POST("/forgot-password", otpLimit, authHandler.ForgotPassword)
		admin.POST("/reset-password", authHandler.ResetPassword)

		admin.POST("/logout", handler.AuthMiddleware(authService), authHandler.Logout)

		users := admin.Group("/users", handler.AuthMiddleware(authService))
		{
			users.POST("", userHandler.Create)
			users.PUT("/me", userHandler.UpdateMe)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
