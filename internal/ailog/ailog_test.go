package ailog

import (
	"fmt"
	"testing"
	"time"
)

func TestLogAssignsIDAndTimestamp(t *testing.T) {
	logger := NewLogger()

	entry := logger.Log(SearchLog{
		Symptoms:             []string{"fever", "cough"},
		PatientType:          "child",
		Severity:             "moderate",
		RecommendationsCount: 3,
		Completed:            true,
	})

	if entry.ID == "" {
		t.Error("ID not assigned")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp not assigned")
	}
	if logger.Len() != 1 {
		t.Errorf("Len() = %d, want 1", logger.Len())
	}
}

func TestLogKeepsNewestFirst(t *testing.T) {
	logger := NewLogger()

	for i := 0; i < 3; i++ {
		logger.Log(SearchLog{
			Symptoms: []string{fmt.Sprintf("symptom-%d", i)},
			Severity: "mild",
		})
	}

	entries := logger.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Symptoms[0] != "symptom-2" {
		t.Errorf("newest entry = %q, want symptom-2", entries[0].Symptoms[0])
	}
	if entries[2].Symptoms[0] != "symptom-0" {
		t.Errorf("oldest entry = %q, want symptom-0", entries[2].Symptoms[0])
	}
}

func TestLogDropsOldestBeyondCapacity(t *testing.T) {
	logger := NewLogger()

	for i := 0; i < Capacity+5; i++ {
		logger.Log(SearchLog{
			Symptoms: []string{fmt.Sprintf("symptom-%d", i)},
		})
	}

	entries := logger.All()
	if len(entries) != Capacity {
		t.Fatalf("got %d entries, want %d", len(entries), Capacity)
	}
	// The newest survives, the first five logged are gone
	if entries[0].Symptoms[0] != fmt.Sprintf("symptom-%d", Capacity+4) {
		t.Errorf("newest entry = %q, want symptom-%d", entries[0].Symptoms[0], Capacity+4)
	}
	if entries[len(entries)-1].Symptoms[0] != "symptom-5" {
		t.Errorf("oldest retained entry = %q, want symptom-5", entries[len(entries)-1].Symptoms[0])
	}
}

func TestAllReturnsCopy(t *testing.T) {
	logger := NewLogger()
	logger.Log(SearchLog{Symptoms: []string{"headache"}})

	entries := logger.All()
	entries[0].Severity = "mutated"

	if logger.All()[0].Severity == "mutated" {
		t.Error("mutating the returned slice changed the logger's state")
	}
}

func TestClear(t *testing.T) {
	logger := NewLogger()
	logger.Log(SearchLog{Symptoms: []string{"nausea"}})
	logger.Clear()

	if logger.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", logger.Len())
	}
}

func TestCountSince(t *testing.T) {
	logger := NewLogger()

	logger.Log(SearchLog{
		Timestamp: time.Now().UTC().AddDate(0, 0, -10),
		Symptoms:  []string{"old"},
	})
	logger.Log(SearchLog{
		Timestamp: time.Now().UTC().AddDate(0, 0, -2),
		Symptoms:  []string{"recent"},
	})
	logger.Log(SearchLog{Symptoms: []string{"now"}})

	if got := logger.CountSince(7); got != 2 {
		t.Errorf("CountSince(7) = %d, want 2", got)
	}
	if got := logger.CountSince(30); got != 3 {
		t.Errorf("CountSince(30) = %d, want 3", got)
	}
}
