package models

import (
	"time"

	"github.com/google/uuid"
)

// NewFamilyMember builds a member with a generated id and the display color
// assigned for its type
func NewFamilyMember(name, memberType, relationship string) FamilyMember {
	return FamilyMember{
		ID:           uuid.New().String(),
		Name:         name,
		Type:         memberType,
		Relationship: relationship,
		Color:        ColorForType(memberType),
		CreatedAt:    time.Now(),
	}
}

// NewMedication builds a medication with a generated id and a stock level
// derived from its counts
func NewMedication(name, dosage, form, frequency, timing string, currentCount, totalCount int, assignedMembers []string) Medication {
	if assignedMembers == nil {
		assignedMembers = []string{}
	}
	return Medication{
		ID:              uuid.New().String(),
		Name:            name,
		Dosage:          dosage,
		Form:            form,
		Frequency:       frequency,
		Timing:          timing,
		AssignedMembers: assignedMembers,
		CurrentCount:    currentCount,
		TotalCount:      totalCount,
		DaysLeft:        currentCount,
		StockLevel:      StockFromCounts(currentCount, totalCount),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
}
