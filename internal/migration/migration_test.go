package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"familymeds/internal/models"
	"familymeds/internal/storage"
	"familymeds/internal/storage/keyvalue"
	"familymeds/internal/storage/sqlite"
)

func newSQLiteTarget(t *testing.T) *sqlite.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "migration.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrateCopiesEverything(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := newSQLiteTarget(t)

	m := New(source, target)
	ok, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !ok {
		t.Fatal("Migrate() = false, want true")
	}
	if !m.Completed() {
		t.Error("Completed() = false after migration")
	}

	sourceStats, err := source.Stats(ctx)
	if err != nil {
		t.Fatalf("source Stats() error = %v", err)
	}
	targetStats, err := target.Stats(ctx)
	if err != nil {
		t.Fatalf("target Stats() error = %v", err)
	}
	if targetStats.FamilyMembers != sourceStats.FamilyMembers {
		t.Errorf("target has %d family members, source has %d",
			targetStats.FamilyMembers, sourceStats.FamilyMembers)
	}
	if targetStats.Medications != sourceStats.Medications {
		t.Errorf("target has %d medications, source has %d",
			targetStats.Medications, sourceStats.Medications)
	}
	if targetStats.Assignments != sourceStats.Assignments {
		t.Errorf("target has %d assignments, source has %d",
			targetStats.Assignments, sourceStats.Assignments)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := newSQLiteTarget(t)

	m := New(source, target)
	if _, err := m.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	before, err := target.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	// Second run hits the completed flag; a fresh service hits the
	// populated-target check. Neither may duplicate rows.
	if _, err := m.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	fresh := New(source, target)
	if _, err := fresh.Migrate(ctx); err != nil {
		t.Fatalf("fresh Migrate() error = %v", err)
	}

	after, err := target.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if after != before {
		t.Errorf("Stats() changed from %+v to %+v", before, after)
	}
}

func TestMigrateSkipsPopulatedTarget(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := keyvalue.New(keyvalue.NewMemoryKV())

	existing := models.FamilyMember{ID: "pre", Name: "Pre-existing", Type: models.MemberTypeAdult}
	if err := target.AddFamilyMember(ctx, existing); err != nil {
		t.Fatalf("AddFamilyMember() error = %v", err)
	}

	m := New(source, target)
	ok, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !ok {
		t.Fatal("Migrate() = false, want true")
	}

	stats, err := target.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FamilyMembers != 1 {
		t.Errorf("target FamilyMembers = %d, want 1 (untouched)", stats.FamilyMembers)
	}
}

func TestMigrateBetweenKeyValueStores(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := keyvalue.New(keyvalue.NewMemoryKV())

	m := New(source, target)
	ok, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !ok || !m.Completed() {
		t.Errorf("ok = %v, Completed() = %v, want both true", ok, m.Completed())
	}

	result, err := m.Compare(ctx)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Match {
		t.Errorf("Compare() after migration = %+v, want matching counts", result)
	}
}

func TestRollbackToOldStorage(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := keyvalue.New(keyvalue.NewMemoryKV())
	if err := target.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	m := New(source, target)
	if err := m.RollbackToOldStorage(ctx); err != nil {
		t.Fatalf("RollbackToOldStorage() error = %v", err)
	}

	result, err := m.Compare(ctx)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !result.Match {
		t.Errorf("Compare() after rollback = %+v, want matching counts", result)
	}
}

func TestBackupAndRestore(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	target := keyvalue.New(keyvalue.NewMemoryKV())
	if err := target.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	m := New(source, target)
	backup, err := m.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if backup.Version != 1 {
		t.Errorf("backup Version = %d, want 1", backup.Version)
	}
	if len(backup.FamilyMembers) != 4 || len(backup.Medications) != 4 {
		t.Fatalf("backup holds %d members and %d medications, want 4 and 4",
			len(backup.FamilyMembers), len(backup.Medications))
	}

	// Mutate, then restore the snapshot
	if err := target.DeleteMedication(ctx, "1"); err != nil {
		t.Fatalf("DeleteMedication() error = %v", err)
	}
	if err := m.Restore(ctx, backup); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	stats, err := target.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FamilyMembers != 4 || stats.Medications != 4 {
		t.Errorf("Stats() after restore = %+v, want 4 members and 4 medications", stats)
	}

	if err := m.Restore(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Restore(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestCompareReportsMismatch(t *testing.T) {
	ctx := context.Background()
	source := keyvalue.New(keyvalue.NewMemoryKV())
	if err := source.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	target := keyvalue.New(keyvalue.NewMemoryKV())

	m := New(source, target)
	result, err := m.Compare(ctx)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Match {
		t.Errorf("Compare() = %+v, want mismatch", result)
	}
	if result.Source.FamilyMembers != 4 || result.Target.FamilyMembers != 0 {
		t.Errorf("counts = %d source, %d target, want 4 and 0",
			result.Source.FamilyMembers, result.Target.FamilyMembers)
	}
}
