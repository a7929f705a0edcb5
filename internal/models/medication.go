package models

import "time"

// Medication represents a tracked medication and its inventory state
type Medication struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Dosage          string     `json:"dosage"`
	Form            string     `json:"form,omitempty"`
	Frequency       string     `json:"frequency,omitempty"`
	Timing          string     `json:"timing,omitempty"`
	AssignedMembers []string   `json:"assignedMembers"`
	DaysLeft        int        `json:"daysLeft"`
	StockLevel      StockLevel `json:"stockLevel"`
	LastTaken       *time.Time `json:"lastTaken,omitempty"`
	CurrentCount    int        `json:"currentCount"`
	TotalCount      int        `json:"totalCount"`
	RefillReminder  string     `json:"refillReminder,omitempty"`
	CreatedAt       string     `json:"createdAt,omitempty"`
}

// MedicationWithMembers pairs a medication with its resolved member records,
// the shape upstream screens consume.
type MedicationWithMembers struct {
	Medication
	Members []FamilyMember `json:"members"`
}

// Backup is a point-in-time snapshot of both entity collections.
type Backup struct {
	Version       int            `json:"version"`
	FamilyMembers []FamilyMember `json:"familyMembers"`
	Medications   []Medication   `json:"medications"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Validate checks the primary fields required by the storage layer
func (m *Medication) Validate() error {
	if m.ID == "" {
		return errMissingField("medication", "id")
	}
	if m.Name == "" {
		return errMissingField("medication", "name")
	}
	return nil
}

// AssignedTo reports whether the medication is assigned to the given member
func (m *Medication) AssignedTo(memberID string) bool {
	for _, id := range m.AssignedMembers {
		if id == memberID {
			return true
		}
	}
	return false
}

// RemoveAssignment strips a member id from the assignment list. Returns true
// if the list changed.
func (m *Medication) RemoveAssignment(memberID string) bool {
	filtered := m.AssignedMembers[:0]
	removed := false
	for _, id := range m.AssignedMembers {
		if id == memberID {
			removed = true
			continue
		}
		filtered = append(filtered, id)
	}
	m.AssignedMembers = filtered
	return removed
}

// ApplyDose records one dose taken: currentCount and daysLeft each drop by
// one (floored at zero), lastTaken is stamped, and the stock level is
// reclassified.
func (m *Medication) ApplyDose(now time.Time) {
	if m.CurrentCount > 0 {
		m.CurrentCount--
	}
	if m.DaysLeft > 0 {
		m.DaysLeft--
	}
	m.LastTaken = &now
	m.StockLevel = Classify(m.CurrentCount, m.TotalCount, m.DaysLeft)
}

// ApplyRefill sets the inventory to a user-supplied count. Capacity never
// shrinks below the new count, and daysLeft tracks the count under the
// one-dose-per-day assumption.
func (m *Medication) ApplyRefill(newCount int) {
	if newCount < 0 {
		newCount = 0
	}
	m.CurrentCount = newCount
	if newCount > m.TotalCount {
		m.TotalCount = newCount
	}
	m.DaysLeft = newCount
	m.StockLevel = Classify(m.CurrentCount, m.TotalCount, m.DaysLeft)
}
