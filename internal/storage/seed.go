package storage

import "familymeds/internal/models"

// SampleFamilyMembers returns the starter family used when a store is empty
func SampleFamilyMembers() []models.FamilyMember {
	return []models.FamilyMember{
		{ID: "1", Name: "Dad", Type: models.MemberTypeAdult, Color: "#4A90E2"},
		{ID: "2", Name: "Mom", Type: models.MemberTypeAdult, Color: "#E94B3C"},
		{ID: "3", Name: "Sam", Type: models.MemberTypeChild, Color: "#F5A623"},
		{ID: "4", Name: "Mia", Type: models.MemberTypeChild, Color: "#F5A623"},
	}
}

// SampleMedications returns the starter medications used when a store is empty
func SampleMedications() []models.Medication {
	return []models.Medication{
		{
			ID: "1", Name: "Lisinopril", Dosage: "10mg", Form: "tablet",
			AssignedMembers: []string{"1", "2"},
			DaysLeft:        25, StockLevel: models.StockGood,
			CurrentCount: 50, TotalCount: 60,
		},
		{
			ID: "2", Name: "Vitamin D", Dosage: "2000IU", Form: "capsule",
			AssignedMembers: []string{"1", "2"},
			DaysLeft:        10, StockLevel: models.StockLow,
			CurrentCount: 20, TotalCount: 60,
		},
		{
			ID: "3", Name: "Allergy Syrup", Dosage: "", Form: "liquid",
			AssignedMembers: []string{"3"},
			DaysLeft:        3, StockLevel: models.StockCritical,
			CurrentCount: 15, TotalCount: 200,
		},
		{
			ID: "4", Name: "Ibuprofen", Dosage: "100mg", Form: "tablet",
			AssignedMembers: []string{"4"},
			DaysLeft:        8, StockLevel: models.StockGood,
			CurrentCount: 16, TotalCount: 20,
		},
	}
}
