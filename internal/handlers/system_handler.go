package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"familymeds/internal/ailog"
	"familymeds/internal/storage/platform"
)

// SystemHandler serves diagnostics and the symptom search log
type SystemHandler struct {
	svc       *platform.Service
	searchLog *ailog.Logger
}

// NewSystemHandler creates a system handler
func NewSystemHandler(svc *platform.Service, searchLog *ailog.Logger) *SystemHandler {
	return &SystemHandler{svc: svc, searchLog: searchLog}
}

// Stats reports entity counts, the active backend, and the platform
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStorageStats(r.Context())
	if err != nil {
		respondWithStorageError(w, "Failed to load storage stats", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// LogSearch records one symptom search interaction
func (h *SystemHandler) LogSearch(w http.ResponseWriter, r *http.Request) {
	var entry ailog.SearchLog
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.searchLog.Log(entry))
}

// ListSearches returns the retained search log, newest first. With ?days=N
// only a count of recent entries is returned.
func (h *SystemHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid days parameter", "", err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int{"count": h.searchLog.CountSince(days)})
		return
	}
	respondWithJSON(w, http.StatusOK, h.searchLog.All())
}

// ClearSearches discards the retained search log
func (h *SystemHandler) ClearSearches(w http.ResponseWriter, r *http.Request) {
	h.searchLog.Clear()
	respondWithJSON(w, http.StatusNoContent, nil)
}
