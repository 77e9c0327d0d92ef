package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kobo-wallet/kobo/internal/auth"
	"github.com/kobo-wallet/kobo/internal/config"
	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/ledger"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/middleware"
	"github.com/kobo-wallet/kobo/internal/notification"
	"github.com/kobo-wallet/kobo/internal/onboarding"
	"github.com/kobo-wallet/kobo/internal/payments"
	"github.com/kobo-wallet/kobo/internal/riskcheck"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Metrics    *metrics.Registry
	Risk       riskcheck.Checker
	Dispatcher onboarding.Dispatcher
}

// Setup configures middlewares and all application routes. Without a
// database the in-memory store is used, which only development allows.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDevelopment() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Metrics(d.Metrics))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory store")
		store = ledger.NewMemoryStore()
	}
	retry := ledger.RetryPolicy{
		MaxRetries: d.Cfg.TxMaxRetries,
		BaseDelay:  d.Cfg.TxRetryBaseDelay,
		Timeout:    d.Cfg.StoreTimeout,
	}
	hasher := credential.NewHasher(d.Cfg.BcryptCost)
	tokens := credential.NewTokenIssuer(credential.TokenConfig{
		AccessSecret:  d.Cfg.AccessTokenSecret,
		RefreshSecret: d.Cfg.RefreshTokenSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
		Issuer:        d.Cfg.AppName,
	})
	risk := d.Risk
	if risk == nil {
		risk = riskcheck.Disabled{}
	}
	dispatcher := d.Dispatcher
	if dispatcher == nil {
		dispatcher = notification.NewDispatcher(notification.NewLoggerNotifier(d.Logger), d.Logger, d.Metrics, d.Cfg.Mail.Timeout)
	}

	authSvc := auth.NewService(auth.Deps{
		Store:   store,
		Hasher:  hasher,
		Tokens:  tokens,
		Retry:   retry,
		Metrics: d.Metrics,
		Logger:  d.Logger,
	})
	onboardingSvc := onboarding.NewService(onboarding.Deps{
		Store:      store,
		Hasher:     hasher,
		OTP:        credential.NewOTPGenerator(d.Cfg.IsProductionOrStaging(), d.Cfg.DefaultOTPCode, d.Cfg.OTPMin, d.Cfg.OTPMax),
		Risk:       risk,
		Dispatcher: dispatcher,
		Retry:      retry,
		AppName:    d.Cfg.AppName,
		Metrics:    d.Metrics,
		Logger:     d.Logger,
	})
	engine := payments.NewEngine(payments.Deps{
		Store:   store,
		Hasher:  hasher,
		Retry:   retry,
		Metrics: d.Metrics,
		Logger:  d.Logger,
	})

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	authHandler := auth.NewHandler(authSvc)
	onboardingHandler := onboarding.NewHandler(onboardingSvc)
	jwtmw := middleware.JWTAuth(authSvc)
	RegisterAuthRoutes(api, authRoutes{
		auth:        authHandler,
		onboarding:  onboardingHandler,
		rateLimiter: middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute),
		jwt:         jwtmw,
	})

	protected := api.Group("", jwtmw)
	RegisterAccountRoutes(protected, authHandler)
	RegisterWalletRoutes(protected, walletRoutes{
		payments:    payments.NewHandler(engine),
		onboarding:  onboardingHandler,
		idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	})

	return nil
}
