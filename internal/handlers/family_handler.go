package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"familymeds/internal/models"
	"familymeds/internal/storage/platform"
)

// FamilyHandler serves the family member endpoints
type FamilyHandler struct {
	svc *platform.Service
}

// NewFamilyHandler creates a family member handler
func NewFamilyHandler(svc *platform.Service) *FamilyHandler {
	return &FamilyHandler{svc: svc}
}

// ListMembers returns all family members
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.GetFamilyMembers(r.Context())
	if err != nil {
		respondWithStorageError(w, "Failed to load family members", err)
		return
	}
	if members == nil {
		members = []models.FamilyMember{}
	}
	respondWithJSON(w, http.StatusOK, members)
}

// GetMember returns a single family member
func (h *FamilyHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.svc.GetFamilyMember(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithStorageError(w, "Failed to load family member", err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

// CreateMember adds a family member, generating id, color, and timestamp for
// any the client omitted
func (h *FamilyHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var member models.FamilyMember
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if member.ID == "" {
		generated := models.NewFamilyMember(member.Name, member.Type, member.Relationship)
		generated.Color = pickColor(member)
		member = generated
	}
	if member.Color == "" {
		member.Color = models.ColorForType(member.Type)
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now()
	}

	if err := h.svc.AddFamilyMember(r.Context(), member); err != nil {
		respondWithStorageError(w, "Failed to add family member", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, member)
}

func pickColor(requested models.FamilyMember) string {
	if requested.Color != "" {
		return requested.Color
	}
	return models.ColorForType(requested.Type)
}

// UpdateMember replaces a family member's record
func (h *FamilyHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var member models.FamilyMember
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	member.ID = r.PathValue("id")

	if err := h.svc.UpdateFamilyMember(r.Context(), member); err != nil {
		respondWithStorageError(w, "Failed to update family member", err)
		return
	}
	respondWithJSON(w, http.StatusOK, member)
}

// DeleteMember removes a family member and its medication assignments
func (h *FamilyHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFamilyMember(r.Context(), r.PathValue("id")); err != nil {
		respondWithStorageError(w, "Failed to delete family member", err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

// MemberMedications returns the medications assigned to one member
func (h *FamilyHandler) MemberMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.svc.MedicationsForMember(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithStorageError(w, "Failed to load medications", err)
		return
	}
	if meds == nil {
		meds = []models.Medication{}
	}
	respondWithJSON(w, http.StatusOK, meds)
}
