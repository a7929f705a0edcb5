// Package ailog keeps a bounded in-memory history of symptom search
// interactions. Entries hold only metadata about each search, never the
// recommendation text itself.
package ailog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capacity is the maximum number of entries retained; older entries are
// discarded first
const Capacity = 50

// SearchLog describes one symptom search interaction
type SearchLog struct {
	ID                   string    `json:"id"`
	Timestamp            time.Time `json:"timestamp"`
	Symptoms             []string  `json:"symptoms"`
	PatientType          string    `json:"patientType"`
	Severity             string    `json:"severity"`
	AdditionalContext    string    `json:"additionalContext,omitempty"`
	RecommendationsCount int       `json:"recommendationsCount"`
	SeekMedicalAttention bool      `json:"seekMedicalAttention"`
	Completed            bool      `json:"completed"`
}

// Logger records search interactions newest-first, capped at Capacity
type Logger struct {
	mu      sync.Mutex
	entries []SearchLog
}

// NewLogger creates an empty logger
func NewLogger() *Logger {
	return &Logger{}
}

// Log records one interaction. The entry's ID and Timestamp are assigned
// here when unset, and the returned copy carries both.
func (l *Logger) Log(entry SearchLog) SearchLog {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Symptoms == nil {
		entry.Symptoms = []string{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]SearchLog{entry}, l.entries...)
	if len(l.entries) > Capacity {
		l.entries = l.entries[:Capacity]
	}
	return entry
}

// All returns the retained entries, newest first
func (l *Logger) All() []SearchLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]SearchLog, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports how many entries are retained
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear discards all entries
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// CountSince reports how many retained entries are at most the given number
// of days old
func (l *Logger) CountSince(days int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, e := range l.entries {
		if !e.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}
