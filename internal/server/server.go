// Package server assembles the gateway: configuration, invoice store,
// chain client, provider pool, and the billing pipeline, mounted on one
// Fiber app.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"solgate/internal/chain"
	"solgate/internal/config"
	"solgate/internal/gateway"
	"solgate/internal/handlers"
	"solgate/internal/invoice"
	"solgate/internal/metrics"
	"solgate/internal/middleware"
	"solgate/internal/payment"
	"solgate/internal/pricing"
	"solgate/internal/provider"
	"solgate/internal/proxy"
	"solgate/internal/settlement"
	"solgate/internal/verify"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	app      *fiber.App
	config   *config.Config
	store    invoice.Store
	registry *provider.Registry
	metrics  *metrics.Metrics
}

// New creates a new server instance
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := invoice.New(ctx, invoice.Config{
		RedisURL: cfg.Store.RedisURL,
		TTL:      cfg.Store.TTL,
	}, slog.Default())

	registry := provider.NewRegistry(slog.Default())
	if err := seedProviders(registry, cfg); err != nil {
		return nil, err
	}

	facilitator := verify.NewFacilitator(cfg.Facilitator.VerifyURL, cfg.Billing.ChainTag)
	verifier := verify.New(chain.NewClient(cfg.Chain.RPCURL), facilitator, slog.Default())
	notifier := settlement.New(cfg.Facilitator.SettleURL, cfg.Billing.ChainTag, slog.Default())
	policy := pricing.New(cfg.Pricing.DefaultPrice, cfg.Pricing.Overrides)
	m := metrics.New()

	pipeline := gateway.New(
		gateway.Config{
			WalletAddress: cfg.Billing.WalletAddress,
			Mint:          cfg.Billing.Mint,
			ChainTag:      cfg.Billing.ChainTag,
			TokenSymbol:   cfg.Billing.TokenSymbol,
		},
		policy,
		store,
		verifier,
		proxy.New(registry, slog.Default()),
		notifier,
		m,
		slog.Default(),
	)

	app := fiber.New(fiber.Config{
		AppName:      "solgate",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	s := &Server{
		app:      app,
		config:   cfg,
		store:    store,
		registry: registry,
		metrics:  m,
	}
	s.setupMiddleware()
	s.setupRoutes(pipeline, policy)
	return s, nil
}

// seedProviders fills the registry from the YAML catalog and the seed URLs.
func seedProviders(registry *provider.Registry, cfg *config.Config) error {
	if cfg.Upstream.ProvidersFile != "" {
		catalog, err := provider.LoadCatalog(cfg.Upstream.ProvidersFile)
		if err != nil {
			return err
		}
		for _, p := range catalog {
			if err := registry.Add(p); err != nil {
				return err
			}
		}
	}

	if cfg.Upstream.DefaultURL != "" {
		if err := registry.Add(provider.Provider{
			ID:              "default",
			Name:            "Default upstream",
			URL:             cfg.Upstream.DefaultURL,
			Tier:            provider.TierPremium,
			PriceMultiplier: 1.0,
			Reputation:      90,
			Uptime:          99,
			LatencyMS:       100,
			Features:        []string{provider.FeatureHistorical},
		}); err != nil {
			return err
		}
	}
	if cfg.Upstream.UseFallback && cfg.Upstream.FallbackURL != "" {
		if err := registry.Add(provider.Provider{
			ID:              "fallback",
			Name:            "Fallback upstream",
			URL:             cfg.Upstream.FallbackURL,
			Tier:            provider.TierPublic,
			PriceMultiplier: 1.0,
			Reputation:      70,
			Uptime:          95,
			LatencyMS:       250,
			Features:        []string{provider.FeatureHistorical},
		}); err != nil {
			return err
		}
	}
	return nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())

	// Request ID first so every later log line can carry it
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.SecurityHeaders())

	// JSON logs in production for aggregators, text for development
	if s.config.Environment == config.EnvProduction {
		s.app.Use(logger.New(logger.Config{
			Format: `{"time":"${time}","status":${status},"method":"${method}","path":"${path}","latency":"${latency}","ip":"${ip}","request_id":"${locals:request_id}"}` + "\n",
		}))
	} else {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} ${latency} [${locals:request_id}]\n",
		}))
	}

	s.app.Use(middleware.RateLimit(s.config.RateLimit.Max, s.config.RateLimit.WindowMS))

	// Browser wallets call the billing endpoint cross-origin and must be
	// able to read the settlement receipt header
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", payment.RequestHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{payment.ResponseHeader, middleware.RequestIDHeader},
		MaxAge:        300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(pipeline *gateway.Pipeline, policy *pricing.Policy) {
	handlers.NewHealthHandler(s.store, s.registry, Version).RegisterRoutes(s.app)
	handlers.NewPricingHandler(policy, s.config.Billing.TokenSymbol, s.config.Billing.ChainTag).RegisterRoutes(s.app)
	handlers.NewProvidersHandler(s.registry).RegisterRoutes(s.app)
	handlers.NewStatsHandler(s.store).RegisterRoutes(s.app)

	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	// The billing pipeline owns POST / and POST /rpc
	pipeline.RegisterRoutes(s.app)

	s.app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":      "not_found",
			"message":    "The requested endpoint does not exist",
			"path":       c.Path(),
			"request_id": middleware.GetRequestID(c),
		})
	})
}

// errorHandler converts unhandled errors into a JSON body
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code == fiber.StatusInternalServerError {
		slog.Error("unhandled request error", "error", err,
			"path", c.Path(), "request_id", middleware.GetRequestID(c))
	}
	return c.Status(code).JSON(fiber.Map{
		"error":      "internal_error",
		"message":    err.Error(),
		"request_id": middleware.GetRequestID(c),
	})
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Server.Port)
	slog.Info("starting gateway",
		"addr", addr,
		"store", s.store.Backend(),
		"providers", s.registry.Len(),
	)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return s.store.Close()
}
