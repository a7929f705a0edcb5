package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"familymeds/internal/ailog"
	"familymeds/internal/config"
	"familymeds/internal/handlers"
	"familymeds/internal/service"
	"familymeds/internal/storage/platform"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// The backend is selected lazily; initialize up front so a broken
	// configuration fails at startup, not on the first request
	dataService := platform.New(cfg)
	defer dataService.Close()

	if _, err := dataService.GetStorageStats(context.Background()); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage ready (backend: %s)", dataService.StorageType())

	// Alert service degrades to a no-op when SES is not configured
	alertService, err := service.NewAlertService(cfg.AWSRegion, cfg.SESFromEmail,
		cfg.SESFromName, cfg.AlertEmail, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create alert service: %v", err)
	}

	searchLog := ailog.NewLogger()

	// Initialize handlers
	familyHandler := handlers.NewFamilyHandler(dataService)
	medicationHandler := handlers.NewMedicationHandler(dataService)
	systemHandler := handlers.NewSystemHandler(dataService, searchLog)

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/family-members", familyHandler.ListMembers)
	mux.HandleFunc("POST /api/family-members", familyHandler.CreateMember)
	mux.HandleFunc("GET /api/family-members/{id}", familyHandler.GetMember)
	mux.HandleFunc("PUT /api/family-members/{id}", familyHandler.UpdateMember)
	mux.HandleFunc("DELETE /api/family-members/{id}", familyHandler.DeleteMember)
	mux.HandleFunc("GET /api/family-members/{id}/medications", familyHandler.MemberMedications)

	mux.HandleFunc("GET /api/medications", medicationHandler.ListMedications)
	mux.HandleFunc("POST /api/medications", medicationHandler.CreateMedication)
	mux.HandleFunc("GET /api/medications/low-stock", medicationHandler.LowStock)
	mux.HandleFunc("GET /api/medications/needing-refill", medicationHandler.NeedingRefill)
	mux.HandleFunc("GET /api/medications/{id}", medicationHandler.GetMedication)
	mux.HandleFunc("PUT /api/medications/{id}", medicationHandler.UpdateMedication)
	mux.HandleFunc("DELETE /api/medications/{id}", medicationHandler.DeleteMedication)
	mux.HandleFunc("POST /api/medications/{id}/dose", medicationHandler.TakeDose)
	mux.HandleFunc("POST /api/medications/{id}/refill", medicationHandler.Refill)

	mux.HandleFunc("GET /api/stats", systemHandler.Stats)
	mux.HandleFunc("GET /api/search-logs", systemHandler.ListSearches)
	mux.HandleFunc("POST /api/search-logs", systemHandler.LogSearch)
	mux.HandleFunc("DELETE /api/search-logs", systemHandler.ClearSearches)

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background low stock check
	stopAlerts := make(chan struct{})
	go lowStockAlertLoop(dataService, alertService, stopAlerts)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	close(stopAlerts)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// lowStockAlertLoop periodically emails a digest of medications running low
func lowStockAlertLoop(dataService *platform.Service, alertService *service.AlertService, stop <-chan struct{}) {
	if !alertService.IsEnabled() {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			low, err := dataService.LowStockMedications(ctx)
			if err != nil {
				log.Printf("Error checking stock levels: %v", err)
				cancel()
				continue
			}
			if err := alertService.SendLowStockDigest(ctx, low); err != nil {
				log.Printf("Error sending low stock digest: %v", err)
			}
			cancel()
		}
	}
}
