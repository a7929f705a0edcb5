package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"familymeds/internal/storage"
)

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondWithJSON(w, status, map[string]string{"error": userMsg})
}

// respondWithStorageError maps the storage sentinel errors onto HTTP statuses
func respondWithStorageError(w http.ResponseWriter, userMsg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondWithError(w, http.StatusNotFound, userMsg, "", err)
	case errors.Is(err, storage.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, userMsg, "", err)
	default:
		respondWithError(w, http.StatusInternalServerError, userMsg, "", err)
	}
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
