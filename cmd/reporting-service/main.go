package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/luisjglz/evaluat/internal/lifecycle"
	"github.com/luisjglz/evaluat/internal/moderation"
	"github.com/luisjglz/evaluat/internal/notification"
	"github.com/luisjglz/evaluat/pkg/clock"
	"github.com/luisjglz/evaluat/pkg/config"
	"github.com/luisjglz/evaluat/pkg/database"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Connect to the database
	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(ctx); err != nil {
		cancel()
		logger.Fatalf("Failed to create database schema: %v", err)
	}
	cancel()

	// Wire services
	clk := clock.NewSystem(cfg.Windows.Timezone)
	mailer := notification.NewMailer(cfg.SMTP, logger)

	lifecycleRepo := lifecycle.NewRepository(db, logger)
	lifecycleService := lifecycle.New(cfg, logger, lifecycleRepo, clk)
	lifecycleHandler := lifecycle.NewHandler(lifecycleService, logger)

	moderationRepo := moderation.NewRepository(db, logger)
	moderationService := moderation.New(cfg, logger, moderationRepo, mailer)
	moderationHandler := moderation.NewHandler(moderationService, logger)

	// Configure routes
	router := mux.NewRouter()
	lifecycleHandler.RegisterRoutes(router)
	moderationHandler.RegisterRoutes(router)

	router.HandleFunc(cfg.Monitoring.HealthPath, monitoring.HealthHandler("reporting-service", db)).Methods("GET")
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Starting Reporting Service on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start Reporting Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Reporting Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Reporting Service stopped")
}
