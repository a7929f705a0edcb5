package keyvalue

import (
	"context"
	"errors"
	"testing"

	"familymeds/internal/models"
	"familymeds/internal/storage"
)

// failingKV simulates an unavailable substrate: reads succeed until broken,
// then every call errors
type failingKV struct {
	inner  *MemoryKV
	broken bool
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.broken {
		return "", false, errors.New("substrate unavailable")
	}
	return f.inner.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.broken {
		return errors.New("substrate unavailable")
	}
	return f.inner.Set(ctx, key, value)
}

func (f *failingKV) Delete(ctx context.Context, keys ...string) error {
	if f.broken {
		return errors.New("substrate unavailable")
	}
	return f.inner.Delete(ctx, keys...)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New(NewMemoryKV())
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return store
}

func TestInitializeSeedsOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	members, err := store.GetFamilyMembers(ctx)
	if err != nil {
		t.Fatalf("GetFamilyMembers() error = %v", err)
	}
	if len(members) != 4 {
		t.Fatalf("got %d family members, want 4", len(members))
	}
	medications, err := store.GetMedications(ctx)
	if err != nil {
		t.Fatalf("GetMedications() error = %v", err)
	}
	if len(medications) != 4 {
		t.Fatalf("got %d medications, want 4", len(medications))
	}

	// Repeat initialization must not duplicate the seed
	for i := 0; i < 3; i++ {
		if err := store.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() #%d error = %v", i+2, err)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FamilyMembers != 4 || stats.Medications != 4 {
		t.Errorf("after repeat init: %d members, %d medications, want 4 and 4",
			stats.FamilyMembers, stats.Medications)
	}
}

func TestAddUpdateDeleteFamilyMember(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	member := models.FamilyMember{ID: "99", Name: "Grandma", Type: models.MemberTypeAdult}
	if err := store.AddFamilyMember(ctx, member); err != nil {
		t.Fatalf("AddFamilyMember() error = %v", err)
	}

	member.Name = "Grandma Rose"
	if err := store.UpdateFamilyMember(ctx, member); err != nil {
		t.Fatalf("UpdateFamilyMember() error = %v", err)
	}

	members, err := store.GetFamilyMembers(ctx)
	if err != nil {
		t.Fatalf("GetFamilyMembers() error = %v", err)
	}
	found := false
	for _, m := range members {
		if m.ID == "99" && m.Name == "Grandma Rose" {
			found = true
		}
	}
	if !found {
		t.Error("updated member not found")
	}

	if err := store.DeleteFamilyMember(ctx, "99"); err != nil {
		t.Fatalf("DeleteFamilyMember() error = %v", err)
	}

	err = store.UpdateFamilyMember(ctx, member)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateFamilyMember() after delete error = %v, want ErrNotFound", err)
	}
}

func TestAddMemberRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	err := store.AddFamilyMember(context.Background(), models.FamilyMember{Name: "No ID"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("AddFamilyMember() error = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteFamilyMemberCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Seed member 1 is assigned to medications 1 and 2
	if err := store.DeleteFamilyMember(ctx, "1"); err != nil {
		t.Fatalf("DeleteFamilyMember() error = %v", err)
	}

	medications, err := store.GetMedications(ctx)
	if err != nil {
		t.Fatalf("GetMedications() error = %v", err)
	}
	for _, med := range medications {
		if med.AssignedTo("1") {
			t.Errorf("medication %s still assigned to deleted member", med.ID)
		}
	}
}

func TestDeleteMedicationVerifies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.DeleteMedication(ctx, "2"); err != nil {
		t.Fatalf("DeleteMedication() error = %v", err)
	}

	medications, err := store.GetMedications(ctx)
	if err != nil {
		t.Fatalf("GetMedications() error = %v", err)
	}
	if len(medications) != 3 {
		t.Errorf("got %d medications, want 3", len(medications))
	}

	err = store.DeleteMedication(ctx, "2")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}

	err = store.DeleteMedication(ctx, "")
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty id delete error = %v, want ErrInvalidInput", err)
	}
}

func TestTakeDoseAndRefill(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Seed medication 4: Ibuprofen, 16 of 20
	if err := store.TakeDose(ctx, "4"); err != nil {
		t.Fatalf("TakeDose() error = %v", err)
	}

	med := getMedication(t, store, "4")
	if med.CurrentCount != 15 {
		t.Errorf("CurrentCount = %d, want 15", med.CurrentCount)
	}
	if med.DaysLeft != 7 {
		t.Errorf("DaysLeft = %d, want 7", med.DaysLeft)
	}
	if med.LastTaken == nil {
		t.Error("LastTaken not stamped")
	}
	if med.StockLevel != models.StockGood {
		t.Errorf("StockLevel = %v, want %v", med.StockLevel, models.StockGood)
	}

	if err := store.Refill(ctx, "4", 40); err != nil {
		t.Fatalf("Refill() error = %v", err)
	}
	med = getMedication(t, store, "4")
	if med.CurrentCount != 40 || med.TotalCount != 40 || med.DaysLeft != 40 {
		t.Errorf("after refill: current=%d total=%d days=%d, want 40/40/40",
			med.CurrentCount, med.TotalCount, med.DaysLeft)
	}
	if med.StockLevel != models.StockGood {
		t.Errorf("StockLevel = %v, want %v", med.StockLevel, models.StockGood)
	}

	if err := store.Refill(ctx, "4", -1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("negative refill error = %v, want ErrInvalidInput", err)
	}
	if err := store.TakeDose(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("TakeDose(nope) error = %v, want ErrNotFound", err)
	}
}

func TestMirrorFallbackOnSubstrateFailure(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{inner: NewMemoryKV()}
	store := New(kv)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// Break the substrate: reads must be served from the memory mirror
	kv.broken = true

	members, err := store.GetFamilyMembers(ctx)
	if err != nil {
		t.Fatalf("GetFamilyMembers() with broken substrate error = %v", err)
	}
	if len(members) != 4 {
		t.Errorf("got %d family members from mirror, want 4", len(members))
	}

	// Writes surface the substrate error but the mirror retains the value,
	// so the session keeps a consistent view
	if err := store.TakeDose(ctx, "4"); err == nil {
		t.Error("TakeDose() with broken substrate error = nil, want substrate error")
	}
	med := getMedication(t, store, "4")
	if med.CurrentCount != 15 {
		t.Errorf("CurrentCount = %d, want 15", med.CurrentCount)
	}
}

func TestDecodeLegacyArray(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	// A bare array without the versioned envelope, as older sessions wrote
	legacy := `[{"id":"1","name":"Dad","type":"adult"}]`
	if err := kv.Set(ctx, "family_members", legacy); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	store := New(kv)
	members, err := store.GetFamilyMembers(ctx)
	if err != nil {
		t.Fatalf("GetFamilyMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].Name != "Dad" {
		t.Errorf("members = %+v, want one member named Dad", members)
	}
}

func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData() error = %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if !stats.Empty() {
		t.Errorf("Stats() after clear = %+v, want empty", stats)
	}
}

func TestStatsCountsAssignments(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	// Seed assignments: 2 + 2 + 1 + 1
	if stats.Assignments != 6 {
		t.Errorf("Assignments = %d, want 6", stats.Assignments)
	}
}

func TestConcurrentDosesLoseNoWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Refill(ctx, "4", 100); err != nil {
		t.Fatalf("Refill() error = %v", err)
	}

	const doses = 20
	done := make(chan error, doses)
	for i := 0; i < doses; i++ {
		go func() {
			done <- store.TakeDose(ctx, "4")
		}()
	}
	for i := 0; i < doses; i++ {
		if err := <-done; err != nil {
			t.Fatalf("TakeDose() error = %v", err)
		}
	}

	med := getMedication(t, store, "4")
	if med.CurrentCount != 100-doses {
		t.Errorf("CurrentCount = %d, want %d", med.CurrentCount, 100-doses)
	}
}

func getMedication(t *testing.T, store *Store, id string) models.Medication {
	t.Helper()
	medications, err := store.GetMedications(context.Background())
	if err != nil {
		t.Fatalf("GetMedications() error = %v", err)
	}
	for _, med := range medications {
		if med.ID == id {
			return med
		}
	}
	t.Fatalf("medication %s not found", id)
	return models.Medication{}
}
