package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openpayflow/orchestrator/internal/config"
	"github.com/openpayflow/orchestrator/internal/events"
	"github.com/openpayflow/orchestrator/internal/gateway"
	"github.com/openpayflow/orchestrator/internal/handlers"
	appmw "github.com/openpayflow/orchestrator/internal/middleware"
	"github.com/openpayflow/orchestrator/internal/services"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.Load()

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	redisCache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	merchants := services.NewMerchantLookup(db, redisCache)
	idempotency := services.NewIdempotencyCache(db, redisCache)
	hub := events.NewHub()

	gateways := buildGatewayRegistry(cfg)

	paymentService := services.NewPaymentService(db, merchants, idempotency, gateways, cfg)
	refundService := services.NewRefundService(db, merchants, gateways)

	e := echo.New()
	e.HTTPErrorHandler = appmw.CustomErrorHandler
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(appmw.CorrelationID)

	paymentHandler := handlers.NewPaymentHandler(db, paymentService, merchants)
	refundHandler := handlers.NewRefundHandler(refundService)
	endpointHandler := handlers.NewWebhookEndpointHandler(db, merchants)
	healthHandler := handlers.NewHealthHandler(db, redisCache.Client(), cfg)
	eventsHandler := handlers.NewEventsStreamHandler(hub, merchants)

	v1 := e.Group("/v1")
	v1.POST("/payments", paymentHandler.Create)
	v1.GET("/payments/:id", paymentHandler.Get)
	v1.GET("/payments", paymentHandler.List)
	v1.POST("/refunds", refundHandler.Create)
	v1.POST("/webhook-endpoints", endpointHandler.Create)
	v1.GET("/webhook-endpoints/:id", endpointHandler.Get)
	v1.PATCH("/webhook-endpoints/:id", endpointHandler.Update)
	v1.DELETE("/webhook-endpoints/:id", endpointHandler.Delete)
	v1.GET("/webhook-endpoints/:id/deliveries", endpointHandler.Deliveries)
	v1.GET("/events/stream", eventsHandler.Stream)

	e.GET("/healthz", healthHandler.Healthz)
	e.GET("/readyz", healthHandler.Readyz)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

// buildGatewayRegistry registers every enabled Gateway Port adapter.
func buildGatewayRegistry(cfg *config.Config) *gateway.Registry {
	registry := gateway.NewRegistry()
	if cfg.EnableMock {
		registry.Register(gateway.NewMock(gateway.MockConfig{
			SuccessRate:      cfg.MockSuccessRate,
			AverageLatencyMs: cfg.MockAverageLatencyMs,
			EnableChaos:      cfg.MockEnableChaos,
			ChaosRate:        cfg.MockChaosRate,
		}))
	}
	if cfg.EnableStripe {
		registry.Register(gateway.NewStripe(cfg.StripeAPIKey))
	}
	if cfg.EnableRazorpay {
		registry.Register(gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret))
	}
	return registry
}
