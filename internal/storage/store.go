package storage

import (
	"context"
	"errors"

	"familymeds/internal/models"
)

// Store is the uniform persistence interface both backends implement.
// Callers never know which backend is active.
type Store interface {
	// Initialize prepares the backend and seeds sample data when the store
	// is empty. Safe to call repeatedly.
	Initialize(ctx context.Context) error

	GetFamilyMembers(ctx context.Context) ([]models.FamilyMember, error)
	GetMedications(ctx context.Context) ([]models.Medication, error)

	SaveFamilyMembers(ctx context.Context, members []models.FamilyMember) error
	SaveMedications(ctx context.Context, medications []models.Medication) error

	AddFamilyMember(ctx context.Context, member models.FamilyMember) error
	UpdateFamilyMember(ctx context.Context, member models.FamilyMember) error
	DeleteFamilyMember(ctx context.Context, memberID string) error

	AddMedication(ctx context.Context, medication models.Medication) error
	UpdateMedication(ctx context.Context, medication models.Medication) error
	DeleteMedication(ctx context.Context, medicationID string) error

	// TakeDose decrements inventory by one dose and reclassifies stock.
	TakeDose(ctx context.Context, medicationID string) error
	// Refill sets the current count to a user-supplied value, raising total
	// capacity if needed.
	Refill(ctx context.Context, medicationID string, newCount int) error

	ClearAllData(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes a backend's contents for diagnostics
type Stats struct {
	FamilyMembers int `json:"familyMembersCount"`
	Medications   int `json:"medicationsCount"`
	Assignments   int `json:"assignmentsCount"`
}

// Empty reports whether the backend holds no entities at all
func (s Stats) Empty() bool {
	return s.FamilyMembers == 0 && s.Medications == 0
}

var (
	// ErrNotFound marks operations referencing an id absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks writes rejected for malformed primary data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVerificationFailed marks post-write read-backs that do not match
	// the expected state.
	ErrVerificationFailed = errors.New("verification failed")
)
