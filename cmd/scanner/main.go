package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/alertme/alertme/internal/config"
	"github.com/alertme/alertme/internal/database"
	"github.com/alertme/alertme/internal/handlers"
	"github.com/alertme/alertme/internal/repository"
	"github.com/alertme/alertme/internal/scheduler"
	"github.com/alertme/alertme/internal/services"
	"github.com/alertme/alertme/pkg/email"
	"github.com/alertme/alertme/pkg/logger"
	"github.com/alertme/alertme/pkg/middleware"
	"github.com/alertme/alertme/pkg/sms"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// channelTransport bridges the SMTP and Twilio senders into the scanner's
// Transport interface.
type channelTransport struct {
	email *email.Sender
	sms   *sms.TwilioClient
}

func (t *channelTransport) SendEmail(to, subject, body string) error {
	return t.email.SendEmail(to, subject, body)
}

func (t *channelTransport) SendSMS(to, body string) error {
	return t.sms.SendSMS(to, body)
}

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	deadlineRepo := repository.NewDeadlineRepository(db)
	userRepo := repository.NewUserRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	// --- Services ---
	recipientService := services.NewRecipientService(userRepo)
	transport := &channelTransport{
		email: email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Sender, cfg.SMTP.Password),
		sms:   sms.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber),
	}
	scannerService := services.NewScannerService(deadlineRepo, recipientService, deliveryRepo, transport, cfg.ScanWorkers)

	// Schedule the daily scans
	if _, err := scheduler.StartScanCronJobs(scannerService, deliveryRepo, cfg.ScanTimes); err != nil {
		log.Fatalf("Scheduler error: %v", err)
	}

	// --- Handlers ---
	scanHandler := handlers.NewScanHandler(scannerService)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()
	router.HandleFunc("/health", scanHandler.HealthHandler).Methods("GET")

	// Admin-only scan routes
	scanRoutes := router.PathPrefix("/scan").Subrouter()
	scanRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	scanRoutes.Use(middleware.RequireRole("admin"))
	scanRoutes.HandleFunc("/status", scanHandler.StatusHandler).Methods("GET")
	scanRoutes.HandleFunc("/run", scanHandler.RunScanHandler).Methods("POST")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	handler := c.Handler(router)

	fmt.Printf("Scanner service running on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
