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

	"github.com/naira-wallet/wallet_service/internal/apikey"
	"github.com/naira-wallet/wallet_service/internal/auth"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/config"
	"github.com/naira-wallet/wallet_service/internal/funding"
	"github.com/naira-wallet/wallet_service/internal/identity"
	"github.com/naira-wallet/wallet_service/internal/ledger"
	"github.com/naira-wallet/wallet_service/internal/metrics"
	"github.com/naira-wallet/wallet_service/internal/middleware"
	"github.com/naira-wallet/wallet_service/internal/notification"
	"github.com/naira-wallet/wallet_service/internal/payments"
	"github.com/naira-wallet/wallet_service/internal/paystack"
	"github.com/naira-wallet/wallet_service/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// Gateway replaces the configured payment gateway when set.
	Gateway funding.Gateway
	// AccessLog enables fiber's plain text access log.
	AccessLog bool
}

// Services are the long-lived services built by Setup.
type Services struct {
	Store    ledger.Store
	Identity *identity.Service
	APIKeys  *apikey.Service
	Tokens   *auth.Tokens
	Funding  *funding.Service
	Payments *payments.Service
	Wallets  *wallet.Service
}

type access int

const (
	public access = iota
	bearerOnly
	keyOrBearer
)

// route declares one endpoint and who may call it. keyOrBearer routes must
// name the API key permission they require.
type route struct {
	method   string
	path     string
	access   access
	perms    []authz.Permission
	handlers []fiber.Handler
}

type chains struct {
	bearer    authz.Chain
	composite authz.Chain
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	svc, err := buildServices(d)
	if err != nil {
		return nil, err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	if d.Metrics != nil {
		app.Use(middleware.Metrics(d.Metrics))
	}

	RegisterHealthRoutes(app, d)

	users := svc.Identity
	ch := chains{
		bearer: authz.Chain{middleware.BearerAuthenticator{Tokens: svc.Tokens, Users: users}},
		composite: authz.Chain{
			middleware.APIKeyAuthenticator{Keys: svc.APIKeys, Users: users, Metrics: d.Metrics},
			middleware.BearerAuthenticator{Tokens: svc.Tokens, Users: users},
		},
	}
	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	var table []route
	table = append(table, keyRoutes(apikey.NewHandler(svc.APIKeys))...)
	table = append(table, walletRoutes(wallet.NewHandler(svc.Wallets))...)
	table = append(table, fundingRoutes(funding.NewHandler(svc.Funding), idem, middleware.RateLimit(d.Cache, "webhook", 600))...)
	table = append(table, paymentRoutes(payments.NewHandler(svc.Payments), idem)...)
	table = append(table, identityRoutes(identity.NewHandler(svc.Identity))...)
	if !d.Cfg.IsProduction() {
		table = append(table, onboardRoutes(auth.NewHandler(svc.Identity, svc.Tokens), middleware.RateLimit(d.Cache, "onboard", 10))...)
	}

	api := app.Group("/api/v1")
	if err := mount(api, ch, table); err != nil {
		return nil, err
	}
	return svc, nil
}

func buildServices(d Deps) (*Services, error) {
	var (
		store   ledger.Store
		idRepo  identity.Repository
		keyRepo apikey.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		idRepo = identity.NewPostgresRepository(d.DB)
		keyRepo = apikey.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		idRepo = identity.NewMemoryRepository(store)
		keyRepo = apikey.NewMemoryRepository()
	}

	tokens, err := auth.NewTokens(d.Cfg.JWTSecret, d.Cfg.JWTTTL, d.Cfg.AppName)
	if err != nil {
		return nil, err
	}

	gateway := d.Gateway
	if gateway == nil {
		if d.Cfg.Paystack.SecretKey != "" {
			gateway = paystack.NewClient(paystack.Config{
				BaseURL:       d.Cfg.Paystack.BaseURL,
				SecretKey:     d.Cfg.Paystack.SecretKey,
				WebhookSecret: d.Cfg.Paystack.WebhookSecret,
				CallbackURL:   d.Cfg.Paystack.CallbackURL,
				Timeout:       d.Cfg.Paystack.Timeout,
			}, d.Logger)
		} else {
			d.Logger.Warn("PAYSTACK_SECRET_KEY not set, deposits use the simulated gateway")
			gateway = funding.NewStaticGateway(true)
		}
	}

	var locker funding.Locker
	if d.Cache != nil {
		locker = funding.NewRedisLocker(d.Cache)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	ids := identity.NewService(idRepo, store, d.Logger)
	return &Services{
		Store:    store,
		Identity: ids,
		APIKeys:  apikey.NewService(keyRepo, apikey.NewHasher(apikey.DefaultParams), d.Logger),
		Tokens:   tokens,
		Funding: funding.NewService(store, gateway, d.Logger, funding.Options{
			Locker:                  locker,
			Notifier:                notifier,
			Metrics:                 d.Metrics,
			RequireWebhookSignature: d.Cfg.IsProduction() || d.Cfg.Paystack.WebhookSecret != "",
		}),
		Payments: payments.NewService(store, ids, d.Logger, payments.Options{
			Notifier: notifier,
			Metrics:  d.Metrics,
			Location: time.Local,
		}),
		Wallets: wallet.NewService(store),
	}, nil
}

func mount(r fiber.Router, ch chains, table []route) error {
	for _, rt := range table {
		handlers := make([]fiber.Handler, 0, len(rt.handlers)+1)
		switch rt.access {
		case bearerOnly:
			handlers = append(handlers, middleware.Authenticate(ch.bearer))
		case keyOrBearer:
			if len(rt.perms) == 0 {
				return fmt.Errorf("route %s %s accepts API keys but declares no permission", rt.method, rt.path)
			}
			handlers = append(handlers, middleware.Authenticate(ch.composite, rt.perms...))
		}
		handlers = append(handlers, rt.handlers...)
		r.Add(rt.method, rt.path, handlers...)
	}
	return nil
}
