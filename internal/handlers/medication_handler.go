package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"familymeds/internal/models"
	"familymeds/internal/storage/platform"
)

// MedicationHandler serves the medication endpoints
type MedicationHandler struct {
	svc *platform.Service
}

// NewMedicationHandler creates a medication handler
func NewMedicationHandler(svc *platform.Service) *MedicationHandler {
	return &MedicationHandler{svc: svc}
}

// ListMedications returns all medications. With ?resolve=members each entry
// carries full member records instead of bare assignment ids.
func (h *MedicationHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("resolve") == "members" {
		resolved, err := h.svc.MedicationsWithMembers(r.Context())
		if err != nil {
			respondWithStorageError(w, "Failed to load medications", err)
			return
		}
		respondWithJSON(w, http.StatusOK, resolved)
		return
	}

	meds, err := h.svc.GetMedications(r.Context())
	if err != nil {
		respondWithStorageError(w, "Failed to load medications", err)
		return
	}
	if meds == nil {
		meds = []models.Medication{}
	}
	respondWithJSON(w, http.StatusOK, meds)
}

// GetMedication returns a single medication
func (h *MedicationHandler) GetMedication(w http.ResponseWriter, r *http.Request) {
	med, err := h.svc.GetMedication(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithStorageError(w, "Failed to load medication", err)
		return
	}
	respondWithJSON(w, http.StatusOK, med)
}

// CreateMedication adds a medication, generating the id and derived inventory
// fields when the client omits them
func (h *MedicationHandler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var med models.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if med.ID == "" {
		generated := models.NewMedication(med.Name, med.Dosage, med.Form, med.Frequency,
			med.Timing, med.CurrentCount, med.TotalCount, med.AssignedMembers)
		generated.RefillReminder = med.RefillReminder
		med = generated
	}
	if med.AssignedMembers == nil {
		med.AssignedMembers = []string{}
	}
	if med.StockLevel == "" {
		med.StockLevel = models.Classify(med.CurrentCount, med.TotalCount, med.DaysLeft)
	}

	if err := h.svc.AddMedication(r.Context(), med); err != nil {
		respondWithStorageError(w, "Failed to add medication", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, med)
}

// UpdateMedication replaces a medication's record and assignments
func (h *MedicationHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	var med models.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	med.ID = r.PathValue("id")
	med.StockLevel = models.Classify(med.CurrentCount, med.TotalCount, med.DaysLeft)

	if err := h.svc.UpdateMedication(r.Context(), med); err != nil {
		respondWithStorageError(w, "Failed to update medication", err)
		return
	}
	respondWithJSON(w, http.StatusOK, med)
}

// DeleteMedication removes a medication
func (h *MedicationHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMedication(r.Context(), r.PathValue("id")); err != nil {
		respondWithStorageError(w, "Failed to delete medication", err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// TakeDose records one dose taken and returns the updated record
func (h *MedicationHandler) TakeDose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.TakeDose(r.Context(), id); err != nil {
		respondWithStorageError(w, "Failed to record dose", err)
		return
	}
	med, err := h.svc.GetMedication(r.Context(), id)
	if err != nil {
		respondWithStorageError(w, "Failed to load medication", err)
		return
	}
	respondWithJSON(w, http.StatusOK, med)
}

// Refill sets the medication's count to the supplied value and returns the
// updated record
func (h *MedicationHandler) Refill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if err := h.svc.Refill(r.Context(), id, body.Count); err != nil {
		respondWithStorageError(w, "Failed to refill medication", err)
		return
	}
	med, err := h.svc.GetMedication(r.Context(), id)
	if err != nil {
		respondWithStorageError(w, "Failed to load medication", err)
		return
	}
	respondWithJSON(w, http.StatusOK, med)
}

// LowStock returns medications classified low or critical
func (h *MedicationHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	meds, err := h.svc.LowStockMedications(r.Context())
	if err != nil {
		respondWithStorageError(w, "Failed to load medications", err)
		return
	}
	if meds == nil {
		meds = []models.Medication{}
	}
	respondWithJSON(w, http.StatusOK, meds)
}

// NeedingRefill returns medications at or under a days-of-supply threshold
// (?days=N, default 7)
func (h *MedicationHandler) NeedingRefill(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid days parameter", "", err)
			return
		}
		days = parsed
	}

	meds, err := h.svc.MedicationsNeedingRefill(r.Context(), days)
	if err != nil {
		respondWithStorageError(w, "Failed to load medications", err)
		return
	}
	if meds == nil {
		meds = []models.Medication{}
	}
	respondWithJSON(w, http.StatusOK, meds)
}
