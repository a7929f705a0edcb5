package keyvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"familymeds/internal/models"
	"familymeds/internal/storage"
)

// Top-level keys holding the serialized entity collections
const (
	familyMembersKey = "family_members"
	medicationsKey   = "medications"
)

const envelopeVersion = 1

// envelope wraps a stored collection with a schema version
type envelope struct {
	Version int             `json:"version"`
	Items   json.RawMessage `json:"items"`
}

// Store is the key-value backend: both entity collections live under two
// top-level keys as JSON arrays. Every write goes to the persistent
// substrate first and is mirrored into an in-process cache; reads fall back
// to the mirror when the substrate is unavailable. A per-store mutex
// serializes the read-modify-write mutations so concurrent updates cannot
// lose writes.
type Store struct {
	mu     sync.Mutex
	kv     KV
	mirror *MemoryKV
}

// New creates a key-value store over the given substrate
func New(kv KV) *Store {
	return &Store{kv: kv, mirror: NewMemoryKV()}
}

// Initialize seeds sample data for any collection that is absent, malformed,
// or empty. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.readMembers(ctx)
	if err != nil || len(members) == 0 {
		if err != nil {
			log.Printf("Reinitializing family members after read error: %v", err)
		}
		if err := s.writeMembers(ctx, storage.SampleFamilyMembers()); err != nil {
			return fmt.Errorf("failed to seed family members: %w", err)
		}
	}

	medications, err := s.readMedications(ctx)
	if err != nil || len(medications) == 0 {
		if err != nil {
			log.Printf("Reinitializing medications after read error: %v", err)
		}
		if err := s.writeMedications(ctx, storage.SampleMedications()); err != nil {
			return fmt.Errorf("failed to seed medications: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the substrate owns any connections
func (s *Store) Close() error {
	return nil
}

// getItem reads persistent storage first and falls back to the memory
// mirror when the substrate errors
func (s *Store) getItem(ctx context.Context, key string) (string, bool) {
	val, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		log.Printf("Persistent read of %s failed, using memory mirror: %v", key, err)
		mval, mok, _ := s.mirror.Get(ctx, key)
		return mval, mok
	}
	if !ok {
		return "", false
	}
	return val, true
}

// setItem writes persistent storage and always mirrors the value in memory,
// so the current session survives a missing substrate
func (s *Store) setItem(ctx context.Context, key, value string) error {
	err := s.kv.Set(ctx, key, value)
	if err != nil {
		log.Printf("Persistent write of %s failed, value retained in memory mirror: %v", key, err)
	}
	if merr := s.mirror.Set(ctx, key, value); merr != nil {
		return merr
	}
	return err
}

// decodeCollection accepts both the versioned envelope this store writes and
// bare legacy arrays
func decodeCollection(raw string, dest interface{}) error {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.Items != nil {
		return json.Unmarshal(env.Items, dest)
	}
	return json.Unmarshal([]byte(raw), dest)
}

func encodeCollection(items interface{}) (string, error) {
	rawItems, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(envelope{Version: envelopeVersion, Items: rawItems})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) readMembers(ctx context.Context) ([]models.FamilyMember, error) {
	raw, ok := s.getItem(ctx, familyMembersKey)
	if !ok {
		return nil, nil
	}
	var members []models.FamilyMember
	if err := decodeCollection(raw, &members); err != nil {
		return nil, fmt.Errorf("failed to decode family members: %w", err)
	}
	return members, nil
}

func (s *Store) writeMembers(ctx context.Context, members []models.FamilyMember) error {
	raw, err := encodeCollection(members)
	if err != nil {
		return fmt.Errorf("failed to encode family members: %w", err)
	}
	return s.setItem(ctx, familyMembersKey, raw)
}

func (s *Store) readMedications(ctx context.Context) ([]models.Medication, error) {
	raw, ok := s.getItem(ctx, medicationsKey)
	if !ok {
		return nil, nil
	}
	var medications []models.Medication
	if err := decodeCollection(raw, &medications); err != nil {
		return nil, fmt.Errorf("failed to decode medications: %w", err)
	}
	for i := range medications {
		if medications[i].AssignedMembers == nil {
			medications[i].AssignedMembers = []string{}
		}
		medications[i].StockLevel = models.ParseStockLevel(string(medications[i].StockLevel))
	}
	return medications, nil
}

func (s *Store) writeMedications(ctx context.Context, medications []models.Medication) error {
	raw, err := encodeCollection(medications)
	if err != nil {
		return fmt.Errorf("failed to encode medications: %w", err)
	}
	return s.setItem(ctx, medicationsKey, raw)
}

// GetFamilyMembers returns the full family member collection
func (s *Store) GetFamilyMembers(ctx context.Context) ([]models.FamilyMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMembers(ctx)
}

// GetMedications returns the full medication collection
func (s *Store) GetMedications(ctx context.Context) ([]models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMedications(ctx)
}

// SaveFamilyMembers replaces the entire family member collection
func (s *Store) SaveFamilyMembers(ctx context.Context, members []models.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeMembers(ctx, members)
}

// SaveMedications replaces the entire medication collection
func (s *Store) SaveMedications(ctx context.Context, medications []models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeMedications(ctx, medications)
}

// AddFamilyMember appends a member to the collection
func (s *Store) AddFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.readMembers(ctx)
	if err != nil {
		return err
	}
	return s.writeMembers(ctx, append(members, member))
}

// UpdateFamilyMember replaces the member with a matching id
func (s *Store) UpdateFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.readMembers(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range members {
		if members[i].ID == member.ID {
			members[i] = member
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("family member %s: %w", member.ID, storage.ErrNotFound)
	}
	return s.writeMembers(ctx, members)
}

// DeleteFamilyMember removes the member and strips its id from every
// medication's assignment list, matching the relational backend's cascade
func (s *Store) DeleteFamilyMember(ctx context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.readMembers(ctx)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, m := range members {
		if m.ID != memberID {
			filtered = append(filtered, m)
		}
	}
	if err := s.writeMembers(ctx, filtered); err != nil {
		return err
	}

	medications, err := s.readMedications(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range medications {
		if medications[i].RemoveAssignment(memberID) {
			changed = true
		}
	}
	if changed {
		return s.writeMedications(ctx, medications)
	}
	return nil
}

// AddMedication appends a medication to the collection
func (s *Store) AddMedication(ctx context.Context, medication models.Medication) error {
	if err := medication.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	medications, err := s.readMedications(ctx)
	if err != nil {
		return err
	}
	return s.writeMedications(ctx, append(medications, medication))
}

// UpdateMedication replaces the medication with a matching id
func (s *Store) UpdateMedication(ctx context.Context, medication models.Medication) error {
	if err := medication.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	medications, err := s.readMedications(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range medications {
		if medications[i].ID == medication.ID {
			medications[i] = medication
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("medication %s: %w", medication.ID, storage.ErrNotFound)
	}
	return s.writeMedications(ctx, medications)
}

// DeleteMedication removes the medication and verifies both the in-memory
// filter and the post-write read-back, surfacing any mismatch as an error
func (s *Store) DeleteMedication(ctx context.Context, medicationID string) error {
	if medicationID == "" {
		return fmt.Errorf("%w: medication id must not be empty", storage.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	medications, err := s.readMedications(ctx)
	if err != nil {
		return err
	}
	found := false
	filtered := make([]models.Medication, 0, len(medications))
	for _, med := range medications {
		if med.ID == medicationID {
			found = true
			continue
		}
		filtered = append(filtered, med)
	}
	if !found {
		return fmt.Errorf("medication %s: %w", medicationID, storage.ErrNotFound)
	}
	if len(filtered) != len(medications)-1 {
		return fmt.Errorf("%w: filter removed %d medications, expected 1",
			storage.ErrVerificationFailed, len(medications)-len(filtered))
	}

	if err := s.writeMedications(ctx, filtered); err != nil {
		return err
	}

	// Read back to confirm the delete actually landed
	verify, err := s.readMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify delete: %w", err)
	}
	for _, med := range verify {
		if med.ID == medicationID {
			return fmt.Errorf("medication %s still present after delete: %w",
				medicationID, storage.ErrVerificationFailed)
		}
	}
	return nil
}

// TakeDose records one dose taken against the stored collection
func (s *Store) TakeDose(ctx context.Context, medicationID string) error {
	return s.mutateMedication(ctx, medicationID, func(med *models.Medication) {
		med.ApplyDose(time.Now())
	})
}

// Refill sets the current count to a user-supplied value
func (s *Store) Refill(ctx context.Context, medicationID string, newCount int) error {
	if newCount < 0 {
		return fmt.Errorf("%w: refill count must not be negative", storage.ErrInvalidInput)
	}
	return s.mutateMedication(ctx, medicationID, func(med *models.Medication) {
		med.ApplyRefill(newCount)
	})
}

func (s *Store) mutateMedication(ctx context.Context, medicationID string, mutate func(*models.Medication)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	medications, err := s.readMedications(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range medications {
		if medications[i].ID == medicationID {
			mutate(&medications[i])
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("medication %s: %w", medicationID, storage.ErrNotFound)
	}
	return s.writeMedications(ctx, medications)
}

// ClearAllData removes both collections from the substrate and the mirror
func (s *Store) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, familyMembersKey, medicationsKey); err != nil {
		return fmt.Errorf("failed to clear persistent storage: %w", err)
	}
	return s.mirror.Delete(ctx, familyMembersKey, medicationsKey)
}

// Stats returns collection sizes; assignments are counted across the inline
// id arrays since this backend has no join table
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.readMembers(ctx)
	if err != nil {
		return storage.Stats{}, err
	}
	medications, err := s.readMedications(ctx)
	if err != nil {
		return storage.Stats{}, err
	}

	stats := storage.Stats{
		FamilyMembers: len(members),
		Medications:   len(medications),
	}
	for _, med := range medications {
		stats.Assignments += len(med.AssignedMembers)
	}
	return stats, nil
}
