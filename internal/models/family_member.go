package models

import "time"

// Member types control capability: adults may mark their own doses taken,
// children's medications are administered by an adult.
const (
	MemberTypeAdult = "adult"
	MemberTypeChild = "child"
)

// Display colors assigned by member type at creation time.
const (
	AdultColor = "#4A90E2"
	ChildColor = "#F5A623"
)

// FamilyMember represents a person medications can be assigned to
type FamilyMember struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Relationship string    `json:"relationship,omitempty"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// ColorForType returns the display color assigned to a member type
func ColorForType(memberType string) string {
	if memberType == MemberTypeChild {
		return ChildColor
	}
	return AdultColor
}

// Validate checks the primary fields required by the storage layer
func (m *FamilyMember) Validate() error {
	if m.ID == "" {
		return errMissingField("family member", "id")
	}
	if m.Name == "" {
		return errMissingField("family member", "name")
	}
	return nil
}
