package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alertme/alertme/internal/services"
	log "github.com/sirupsen/logrus"
)

// ScanHandler exposes the scanner's operational endpoints: health, status
// of the last scan and a manual trigger for admins.
type ScanHandler struct {
	Scanner *services.ScannerService
}

// NewScanHandler creates a new instance of ScanHandler.
func NewScanHandler(scanner *services.ScannerService) *ScanHandler {
	return &ScanHandler{Scanner: scanner}
}

// HealthHandler reports liveness.
func (h *ScanHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// StatusHandler returns the report of the most recent scan.
func (h *ScanHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	report := h.Scanner.LastReport()
	if report == nil {
		http.Error(w, "No scan has run yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// RunScanHandler triggers a scan outside the schedule and returns its
// report. Guarded by admin auth in the router.
func (h *ScanHandler) RunScanHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("Manual deadline scan requested")

	report, err := h.Scanner.Scan(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrScanInFlight) {
			http.Error(w, "A scan is already in progress", http.StatusConflict)
			return
		}
		log.WithError(err).Error("Manual scan failed")
		http.Error(w, "Scan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
