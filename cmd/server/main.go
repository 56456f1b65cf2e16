// Chat checkout server for the card-game storefront.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/chatcheckout/internal/api"
	"github.com/ashureev/chatcheckout/internal/cache"
	"github.com/ashureev/chatcheckout/internal/catalog"
	"github.com/ashureev/chatcheckout/internal/config"
	"github.com/ashureev/chatcheckout/internal/conversation"
	"github.com/ashureev/chatcheckout/internal/convlog"
	"github.com/ashureev/chatcheckout/internal/identity"
	"github.com/ashureev/chatcheckout/internal/llm"
	"github.com/ashureev/chatcheckout/internal/metrics"
	"github.com/ashureev/chatcheckout/internal/middleware"
	"github.com/ashureev/chatcheckout/internal/orders"
	"github.com/ashureev/chatcheckout/internal/payment"
	"github.com/ashureev/chatcheckout/internal/recommend"
	"github.com/ashureev/chatcheckout/internal/response"
	"github.com/ashureev/chatcheckout/internal/store"
	"github.com/ashureev/chatcheckout/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if cfg.SeedPath != "" {
		if err := store.LoadSeedFile(context.Background(), repo, cfg.SeedPath); err != nil {
			slog.Error("Failed to load catalog seed", "path", cfg.SeedPath, "error", err)
			os.Exit(1)
		}
	}

	gate := cache.NewGate(cfg.Cache.MaxConcurrentFetches)
	products := catalog.New(repo, catalog.Options{
		TTL:            cfg.Cache.TTL,
		MaxEntries:     cfg.Cache.MaxEntries,
		FetchTimeout:   cfg.Cache.FetchTimeout,
		Gate:           gate,
		MaxAttempts:    cfg.Cache.StoreMaxAttempts,
		InitialBackoff: cfg.Cache.StoreInitialBackoff,
		Logger:         logger,
	})
	recommender := recommend.New(products, recommend.Options{
		TTL:    cfg.Cache.RecommendationTTL,
		Gate:   gate,
		Logger: logger,
	})

	pipeline := response.New(response.Options{
		Primary:          newCompleter(cfg.LLM.Primary, cfg.LLM.Timeout),
		Secondary:        newCompleter(cfg.LLM.Secondary, cfg.LLM.Timeout),
		Knowledge:        products,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		HistoryTurns:     cfg.LLM.HistoryTurns,
		Structured:       cfg.LLM.Structured,
		WhatsAppNumber:   cfg.WhatsAppNumber,
		FreeDeliveryCity: cfg.Delivery.FreeCity,
		Logger:           logger,
	})
	if !cfg.LLM.Primary.Enabled() && !cfg.LLM.Secondary.Enabled() {
		slog.Info("No LLM provider configured, replies use the FAQ and fallback text only")
	}

	sink := newOrderSink(cfg, logger)
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			slog.Error("Failed to close order sink", "error", closeErr)
		}
	}()

	var globalLog string
	if cfg.ConversationLog.GlobalEnabled {
		globalLog = cfg.ConversationLog.GlobalPath
	}
	convLogger, err := convlog.New(convlog.Config{
		Enabled:    cfg.ConversationLog.Enabled,
		Dir:        cfg.ConversationLog.Dir,
		GlobalFile: globalLog,
		QueueSize:  cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	if convLogger != nil {
		defer func() {
			if closeErr := convLogger.Close(); closeErr != nil {
				slog.Error("Failed to close conversation logger", "error", closeErr)
			}
		}()
	}

	registry := conversation.NewRegistry(repo, logger)
	engine := conversation.NewEngine(conversation.Config{
		DeliveryFee:      cfg.Delivery.Fee,
		FreeDeliveryCity: cfg.Delivery.FreeCity,
		DefaultCity:      cfg.Delivery.DefaultCity,
		MaxHistory:       cfg.Session.MaxHistory,
	}, conversation.Deps{
		Registry:    registry,
		Catalog:     products,
		Responder:   pipeline,
		Recommender: recommender,
		Payments: payment.NewHandoff(payment.Config{
			ExchangeRate:       cfg.Payment.ExchangeRate,
			SettlementCurrency: cfg.Payment.SettlementCurrency,
			MinCharge:          cfg.Payment.MinCharge,
		}),
		Orders: sink,
		Delayer: newDelayer(cfg.TypingDelay),
		ConvLog: convLogger,
		Logger:  logger,
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, 2*time.Second)
	chatHandler := api.NewChatHandler(engine, limiter, logger).WithConfirmSecret(cfg.Payment.ConfirmSecret)
	if cfg.Payment.ConfirmSecret == "" {
		slog.Info("PAYMENT_CONFIRM_SECRET not set, card payment confirmations are disabled")
	}
	wsHandler := api.NewWebSocketHandler(engine, limiter, cfg.AllowedOrigins, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())

	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Demo chat page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// WebSocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start background workers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepers := append(products.Caches(), recommender.Cache(), limiter)
	cache.StartSweeper(ctx, cfg.Cache.SweepInterval, sweepers...)
	conversation.StartTTLWorker(ctx, registry, repo, cfg.Session.TTL, cfg.Session.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newDelayer disables the typing pause when no maximum is configured.
func newDelayer(c config.TypingDelayConfig) conversation.Delayer {
	if c.Max <= 0 {
		return conversation.NoDelay{}
	}
	return conversation.TypingDelay{Min: c.Min, Max: c.Max, PerChar: c.PerChar, Jitter: c.Jitter}
}

// newCompleter returns nil when the provider is not configured.
func newCompleter(p config.LLMProviderConfig, timeout time.Duration) llm.Completer {
	if !p.Enabled() {
		return nil
	}
	slog.Info("LLM provider configured", "name", p.Name, "model", p.Model)
	return llm.NewClient(llm.Config{
		Name:    p.Name,
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Model:   p.Model,
		Timeout: timeout,
	})
}

func newOrderSink(cfg *config.Config, logger *slog.Logger) orders.Sink {
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("Kafka not configured, finalized orders are only logged")
		return orders.NewLogSink(logger)
	}
	slog.Info("Publishing finalized orders to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.OrdersTopic)
	return orders.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, logger)
}
