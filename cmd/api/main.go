package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/viridian-city/bank-service/internal/config"
	"github.com/viridian-city/bank-service/internal/handler"
	"github.com/viridian-city/bank-service/internal/integrations/webhook"
	"github.com/viridian-city/bank-service/internal/middleware"
	"github.com/viridian-city/bank-service/internal/repository"
	"github.com/viridian-city/bank-service/internal/service"
	"github.com/viridian-city/bank-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	if err := repo.InitSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to initialize schema: %v", err)
	}
	webhooks := webhook.NewClient(cfg, logger)
	mailer := email.NewSender(cfg, logger)
	svc := service.NewService(repo, logger, cfg, webhooks, mailer)
	h := handler.NewHandler(svc, logger)

	// Expired sessions are swept hourly.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		svc.CleanupSessions(context.Background())
	}); err != nil {
		logger.Fatalf("Failed to schedule session cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg, repo))
	authRouter.HandleFunc("/logout", h.Logout).Methods("POST")
	authRouter.HandleFunc("/change-password", h.ChangePassword).Methods("POST")
	authRouter.HandleFunc("/profile", h.Profile).Methods("GET")
	authRouter.HandleFunc("/balance", h.GetBalance).Methods("GET")
	authRouter.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
	authRouter.HandleFunc("/transfer", h.Transfer).Methods("POST")
	authRouter.HandleFunc("/card", h.GetCard).Methods("GET")
	authRouter.HandleFunc("/card/refresh", h.RefreshCard).Methods("POST")
	authRouter.HandleFunc("/payment-requests", h.ListPaymentRequests).Methods("GET")
	authRouter.HandleFunc("/payment-requests", h.CreatePaymentRequest).Methods("POST")
	authRouter.HandleFunc("/payment-requests/{id:[0-9]+}/respond", h.RespondToPaymentRequest).Methods("POST")
	authRouter.HandleFunc("/payment-requests/{id:[0-9]+}/cancel", h.CancelPaymentRequest).Methods("POST")
	authRouter.HandleFunc("/statement", h.GetStatement).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
