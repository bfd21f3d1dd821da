package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"typingclass/internal/anticheat"
	"typingclass/internal/config"
	"typingclass/internal/database"
	"typingclass/internal/handlers"
	appmetrics "typingclass/internal/metrics"
	"typingclass/internal/middleware/ratelimit"
	"typingclass/internal/services"
	"typingclass/internal/session"
)

func main() {

	// Load configuration
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.NewConnection(cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := database.NewRedisConnection(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize services
	recordService := services.NewRecordService(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := recordService.InitSchema(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	if cfg.SeedRecords {
		if err := recordService.Seed(ctx); err != nil {
			log.Printf("Warning: failed to seed records: %v", err)
		}
	}
	cancel()

	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)
	ledger := ratelimit.NewLedger()
	pipeline := anticheat.NewPipeline(ledger)

	// Metrics
	registry := prometheus.NewRegistry()
	appmetrics.MustRegister(registry)

	// Initialize Echo
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize handlers
	h := handlers.NewHandler(recordService, sessions, pipeline, redisClient, cfg.StatsCacheTTL)

	// Routes
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.POST("/api/practice/:mode", h.StartPractice)
	e.GET("/api/practice-text/:mode", h.GetPracticeText)
	e.POST("/api/records", h.CreateRecord)
	e.GET("/api/records/top", h.GetTopRecords)
	e.GET("/api/records", h.GetRecords)
	e.GET("/api/records/stats", h.GetStats)

	// Start server
	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
