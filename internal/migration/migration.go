// Package migration performs the one-time transfer of entities from the
// key-value backend into the relational backend, plus the emergency inverse
// and backup/restore tooling around it.
package migration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"familymeds/internal/models"
	"familymeds/internal/storage"
)

// schemaPreparer is implemented by backends that can create their schema
// without seeding sample data
type schemaPreparer interface {
	EnsureSchema(ctx context.Context) error
}

// Comparison is the diagnostic result of comparing both backends
type Comparison struct {
	Source storage.Stats `json:"source"`
	Target storage.Stats `json:"target"`
	Match  bool          `json:"match"`
}

// Service copies entities between the key-value source and the relational
// target. Completion is tracked per Service instance, not in a package
// global, so each test can construct a fresh one.
type Service struct {
	source storage.Store
	target storage.Store

	mu        sync.Mutex
	completed bool
}

// New creates a migration service between the two backends
func New(source, target storage.Store) *Service {
	return &Service{source: source, target: target}
}

// Completed reports whether a migration already ran in this process
func (s *Service) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Reset clears the completion flag (for testing)
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = false
}

// Migrate copies all entities from the key-value backend into the relational
// backend. It is a no-op when the migration already ran in this process or
// when the relational backend already holds data. Returns true when the
// target is ready, whether or not anything was copied.
func (s *Service) Migrate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		log.Println("Migration already completed")
		return true, nil
	}

	if err := s.source.Initialize(ctx); err != nil {
		return false, fmt.Errorf("failed to initialize source storage: %w", err)
	}
	if prep, ok := s.target.(schemaPreparer); ok {
		if err := prep.EnsureSchema(ctx); err != nil {
			return false, fmt.Errorf("failed to prepare target storage: %w", err)
		}
	}

	// Skip the copy when the target already contains data
	targetStats, err := s.target.Stats(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read target stats: %w", err)
	}
	if !targetStats.Empty() {
		log.Println("Target storage already contains data, skipping migration")
		s.completed = true
		return true, nil
	}

	members, err := s.source.GetFamilyMembers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read family members from source: %w", err)
	}
	medications, err := s.source.GetMedications(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read medications from source: %w", err)
	}

	if len(members) == 0 && len(medications) == 0 {
		log.Println("No data found in source storage, nothing to migrate")
		s.completed = true
		return true, nil
	}

	log.Printf("Migrating %d family members and %d medications", len(members), len(medications))
	if err := s.copyInto(ctx, members, medications); err != nil {
		return false, err
	}
	if err := s.verify(ctx, len(members), len(medications)); err != nil {
		return false, err
	}

	s.completed = true
	log.Println("Migration completed successfully")
	return true, nil
}

// copyInto writes the given entities into the target. Family members go
// first so every medication's assignment rows can satisfy their foreign
// keys.
func (s *Service) copyInto(ctx context.Context, members []models.FamilyMember, medications []models.Medication) error {
	for _, member := range members {
		if err := s.target.AddFamilyMember(ctx, member); err != nil {
			return fmt.Errorf("failed to migrate family member %s: %w", member.ID, err)
		}
	}
	for _, medication := range medications {
		if err := s.target.AddMedication(ctx, medication); err != nil {
			return fmt.Errorf("failed to migrate medication %s: %w", medication.ID, err)
		}
	}
	return nil
}

// verify re-reads target counts and surfaces any mismatch
func (s *Service) verify(ctx context.Context, wantMembers, wantMedications int) error {
	stats, err := s.target.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify migration: %w", err)
	}
	if stats.FamilyMembers != wantMembers || stats.Medications != wantMedications {
		return fmt.Errorf("%w: migrated %d/%d family members and %d/%d medications",
			storage.ErrVerificationFailed,
			stats.FamilyMembers, wantMembers, stats.Medications, wantMedications)
	}
	log.Printf("Migration verified: %d family members, %d medications, %d assignments",
		stats.FamilyMembers, stats.Medications, stats.Assignments)
	return nil
}

// RollbackToOldStorage copies the relational backend's contents back into
// the key-value backend. Emergency use only.
func (s *Service) RollbackToOldStorage(ctx context.Context) error {
	log.Println("Rolling back to key-value storage...")

	members, err := s.target.GetFamilyMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to read family members from target: %w", err)
	}
	medications, err := s.target.GetMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to read medications from target: %w", err)
	}

	if err := s.source.SaveFamilyMembers(ctx, members); err != nil {
		return fmt.Errorf("failed to save family members to source: %w", err)
	}
	if err := s.source.SaveMedications(ctx, medications); err != nil {
		return fmt.Errorf("failed to save medications to source: %w", err)
	}

	log.Println("Rollback completed successfully")
	return nil
}

// Backup snapshots the relational backend's entity collections
func (s *Service) Backup(ctx context.Context) (*models.Backup, error) {
	members, err := s.target.GetFamilyMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read family members: %w", err)
	}
	medications, err := s.target.GetMedications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read medications: %w", err)
	}
	return &models.Backup{
		Version:       1,
		FamilyMembers: members,
		Medications:   medications,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Restore clears the relational backend and replays the migration algorithm
// using the bundle as source
func (s *Service) Restore(ctx context.Context, backup *models.Backup) error {
	if backup == nil {
		return fmt.Errorf("%w: backup bundle must not be nil", storage.ErrInvalidInput)
	}
	log.Printf("Restoring backup from %s...", backup.Timestamp.Format(time.RFC3339))

	if prep, ok := s.target.(schemaPreparer); ok {
		if err := prep.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare target storage: %w", err)
		}
	}
	if err := s.target.ClearAllData(ctx); err != nil {
		return fmt.Errorf("failed to clear target storage: %w", err)
	}
	if err := s.copyInto(ctx, backup.FamilyMembers, backup.Medications); err != nil {
		return err
	}
	return s.verify(ctx, len(backup.FamilyMembers), len(backup.Medications))
}

// Compare reports entity counts on both backends and whether they agree
func (s *Service) Compare(ctx context.Context) (Comparison, error) {
	sourceStats, err := s.source.Stats(ctx)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to read source stats: %w", err)
	}
	targetStats, err := s.target.Stats(ctx)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to read target stats: %w", err)
	}
	return Comparison{
		Source: sourceStats,
		Target: targetStats,
		Match: sourceStats.FamilyMembers == targetStats.FamilyMembers &&
			sourceStats.Medications == targetStats.Medications,
	}, nil
}
