// Package platform selects the storage backend for the current runtime and
// presents one uniform data service over it. Environment sniffing lives here
// and nowhere else.
package platform

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/redis/go-redis/v9"

	"familymeds/internal/config"
	"familymeds/internal/models"
	"familymeds/internal/storage"
	"familymeds/internal/storage/keyvalue"
	"familymeds/internal/storage/sqlite"
)

// Backend identifiers reported by StorageStats
const (
	StorageTypeSQLite   = "sqlite"
	StorageTypeKeyValue = "keyvalue"
	StorageTypeMemory   = "memory"
)

// StorageStats extends backend counts with selection diagnostics
type StorageStats struct {
	storage.Stats
	StorageType string `json:"storageType"`
	Platform    string `json:"platform"`
}

// Service is the platform-aware data service. The backend is chosen once,
// on first use, and initialization runs exactly once per Service instance;
// tests construct a fresh Service to reset that state.
type Service struct {
	cfg *config.Config

	mu          sync.Mutex
	initialized bool
	store       storage.Store
	storageType string
}

// New creates an uninitialized service; the backend is selected lazily on
// the first call that needs it
func New(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// NewWithStore wires an explicit backend, bypassing selection (used by tests
// and by the migration tooling)
func NewWithStore(store storage.Store, storageType string) *Service {
	return &Service{store: store, storageType: storageType}
}

// ensureInitialized selects the backend on first call and runs its
// Initialize exactly once
func (s *Service) ensureInitialized(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if s.store == nil {
		store, storageType, err := s.selectBackend()
		if err != nil {
			return err
		}
		s.store = store
		s.storageType = storageType
	}
	if err := s.store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", s.storageType, err)
	}
	log.Printf("Storage initialized: type=%s platform=%s", s.storageType, runtime.GOOS)
	s.initialized = true
	return nil
}

// selectBackend applies the selection rule: forced by config, or prefer the
// relational backend with a soft degrade to key-value when it cannot open
func (s *Service) selectBackend() (storage.Store, string, error) {
	switch s.cfg.StorageBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(s.cfg.DatabasePath)
		if err != nil {
			return nil, "", fmt.Errorf("sqlite backend requested but unavailable: %w", err)
		}
		return store, StorageTypeSQLite, nil
	case config.BackendKeyValue:
		return s.keyValueBackend()
	case config.BackendMemory:
		return keyvalue.New(keyvalue.NewMemoryKV()), StorageTypeMemory, nil
	default:
		store, err := sqlite.Open(s.cfg.DatabasePath)
		if err == nil {
			return store, StorageTypeSQLite, nil
		}
		// Soft degrade: an unusable relational engine is not fatal
		log.Printf("SQLite not available, falling back to key-value storage: %v", err)
		return s.keyValueBackend()
	}
}

func (s *Service) keyValueBackend() (storage.Store, string, error) {
	if s.cfg.RedisAddr == "" {
		return keyvalue.New(keyvalue.NewMemoryKV()), StorageTypeMemory, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
	})
	return keyvalue.New(keyvalue.NewRedisKV(client)), StorageTypeKeyValue, nil
}

// StorageType reports which backend is active (empty before first use)
func (s *Service) StorageType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storageType
}

// Store exposes the selected backend for composition (migration tooling)
func (s *Service) Store(ctx context.Context) (storage.Store, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return s.store, nil
}

// Close releases the active backend, if one was selected
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// GetFamilyMembers returns all family members
func (s *Service) GetFamilyMembers(ctx context.Context) ([]models.FamilyMember, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return s.store.GetFamilyMembers(ctx)
}

// GetMedications returns all medications with assignment lists
func (s *Service) GetMedications(ctx context.Context) ([]models.Medication, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return s.store.GetMedications(ctx)
}

// SaveFamilyMembers replaces the family member collection
func (s *Service) SaveFamilyMembers(ctx context.Context, members []models.FamilyMember) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.SaveFamilyMembers(ctx, members)
}

// SaveMedications replaces the medication collection
func (s *Service) SaveMedications(ctx context.Context, medications []models.Medication) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.SaveMedications(ctx, medications)
}

// AddFamilyMember adds a member
func (s *Service) AddFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.AddFamilyMember(ctx, member)
}

// UpdateFamilyMember updates a member
func (s *Service) UpdateFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.UpdateFamilyMember(ctx, member)
}

// DeleteFamilyMember deletes a member, cascading into assignment lists
func (s *Service) DeleteFamilyMember(ctx context.Context, memberID string) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.DeleteFamilyMember(ctx, memberID)
}

// AddMedication adds a medication
func (s *Service) AddMedication(ctx context.Context, medication models.Medication) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.AddMedication(ctx, medication)
}

// UpdateMedication updates a medication wholesale
func (s *Service) UpdateMedication(ctx context.Context, medication models.Medication) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.UpdateMedication(ctx, medication)
}

// DeleteMedication deletes a medication
func (s *Service) DeleteMedication(ctx context.Context, medicationID string) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.DeleteMedication(ctx, medicationID)
}

// TakeDose records one dose taken
func (s *Service) TakeDose(ctx context.Context, medicationID string) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.TakeDose(ctx, medicationID)
}

// Refill sets a medication's current count to a new value
func (s *Service) Refill(ctx context.Context, medicationID string, newCount int) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.Refill(ctx, medicationID, newCount)
}

// ClearAllData empties the active backend
func (s *Service) ClearAllData(ctx context.Context) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	return s.store.ClearAllData(ctx)
}

// GetStorageStats reports entity counts plus which backend is active and
// the runtime platform identifier
func (s *Service) GetStorageStats(ctx context.Context) (StorageStats, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return StorageStats{}, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return StorageStats{}, err
	}
	return StorageStats{
		Stats:       stats,
		StorageType: s.storageType,
		Platform:    runtime.GOOS,
	}, nil
}

// GetFamilyMember returns a single member by id
func (s *Service) GetFamilyMember(ctx context.Context, memberID string) (*models.FamilyMember, error) {
	members, err := s.GetFamilyMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == memberID {
			return &members[i], nil
		}
	}
	return nil, fmt.Errorf("family member %s: %w", memberID, storage.ErrNotFound)
}

// GetMedication returns a single medication by id
func (s *Service) GetMedication(ctx context.Context, medicationID string) (*models.Medication, error) {
	medications, err := s.GetMedications(ctx)
	if err != nil {
		return nil, err
	}
	for i := range medications {
		if medications[i].ID == medicationID {
			return &medications[i], nil
		}
	}
	return nil, fmt.Errorf("medication %s: %w", medicationID, storage.ErrNotFound)
}

// MedicationsForMember returns medications assigned to the given member
func (s *Service) MedicationsForMember(ctx context.Context, memberID string) ([]models.Medication, error) {
	medications, err := s.GetMedications(ctx)
	if err != nil {
		return nil, err
	}
	var assigned []models.Medication
	for _, med := range medications {
		if med.AssignedTo(memberID) {
			assigned = append(assigned, med)
		}
	}
	return assigned, nil
}

// LowStockMedications returns medications classified low or critical
func (s *Service) LowStockMedications(ctx context.Context) ([]models.Medication, error) {
	medications, err := s.GetMedications(ctx)
	if err != nil {
		return nil, err
	}
	var low []models.Medication
	for _, med := range medications {
		if med.StockLevel == models.StockLow || med.StockLevel == models.StockCritical {
			low = append(low, med)
		}
	}
	return low, nil
}

// MedicationsNeedingRefill returns medications at or under the given days
// of remaining supply
func (s *Service) MedicationsNeedingRefill(ctx context.Context, daysThreshold int) ([]models.Medication, error) {
	medications, err := s.GetMedications(ctx)
	if err != nil {
		return nil, err
	}
	var needing []models.Medication
	for _, med := range medications {
		if med.DaysLeft <= daysThreshold {
			needing = append(needing, med)
		}
	}
	return needing, nil
}

// MedicationsWithMembers resolves each medication's assignment ids into full
// member records, the shape upstream screens consume
func (s *Service) MedicationsWithMembers(ctx context.Context) ([]models.MedicationWithMembers, error) {
	members, err := s.GetFamilyMembers(ctx)
	if err != nil {
		return nil, err
	}
	medications, err := s.GetMedications(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.FamilyMember, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	result := make([]models.MedicationWithMembers, 0, len(medications))
	for _, med := range medications {
		resolved := models.MedicationWithMembers{Medication: med, Members: []models.FamilyMember{}}
		for _, id := range med.AssignedMembers {
			if m, ok := byID[id]; ok {
				resolved.Members = append(resolved.Members, m)
			}
		}
		result = append(result, resolved)
	}
	return result, nil
}
