package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"familymeds/internal/models"
	"familymeds/internal/storage"
)

// Store is the relational backend: durable, transactionally consistent
// storage for native runtimes using embedded SQLite.
type Store struct {
	db *sql.DB
}

// Open creates and configures the database connection
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates tables if absent and seeds sample data when both entity
// tables are empty. Safe to call multiple times across process restarts.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.createTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.seedSampleData(ctx); err != nil {
		return fmt.Errorf("failed to seed sample data: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables without seeding, so callers can inspect
// emptiness before any sample data lands
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.createTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *Store) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS family_members (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('adult', 'child')),
			relationship TEXT,
			color TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS medications (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			dosage TEXT,
			form TEXT,
			frequency TEXT,
			timing TEXT,
			days_left INTEGER DEFAULT 0,
			stock_level TEXT DEFAULT 'good',
			last_taken DATETIME,
			current_count INTEGER,
			total_count INTEGER,
			refill_reminder TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS medication_assignments (
			medication_id TEXT,
			family_member_id TEXT,
			PRIMARY KEY (medication_id, family_member_id),
			FOREIGN KEY (medication_id) REFERENCES medications(id) ON DELETE CASCADE,
			FOREIGN KEY (family_member_id) REFERENCES family_members(id) ON DELETE CASCADE
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// seedSampleData inserts starter entities only when both tables are empty
func (s *Store) seedSampleData(ctx context.Context) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	if !stats.Empty() {
		return nil
	}

	for _, member := range storage.SampleFamilyMembers() {
		if err := s.AddFamilyMember(ctx, member); err != nil {
			return fmt.Errorf("failed to seed family member %s: %w", member.ID, err)
		}
	}
	for _, medication := range storage.SampleMedications() {
		if err := s.AddMedication(ctx, medication); err != nil {
			return fmt.Errorf("failed to seed medication %s: %w", medication.ID, err)
		}
	}
	return nil
}

// GetFamilyMembers retrieves all family members ordered by name
func (s *Store) GetFamilyMembers(ctx context.Context) ([]models.FamilyMember, error) {
	query := `SELECT id, name, type, COALESCE(relationship, ''), color, created_at
		FROM family_members ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var member models.FamilyMember
		var createdAt sql.NullString
		if err := rows.Scan(&member.ID, &member.Name, &member.Type, &member.Relationship, &member.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		member.CreatedAt = parseTimestamp(createdAt.String)
		members = append(members, member)
	}
	return members, rows.Err()
}

// GetMedications retrieves all medications with their assignment lists.
// Medications with no assignment rows yield an empty list, not an error.
func (s *Store) GetMedications(ctx context.Context) ([]models.Medication, error) {
	query := `SELECT id, name, COALESCE(dosage, ''), COALESCE(form, ''),
		COALESCE(frequency, ''), COALESCE(timing, ''), days_left, stock_level,
		last_taken, COALESCE(current_count, 0), COALESCE(total_count, 0),
		COALESCE(refill_reminder, ''), COALESCE(created_at, '')
		FROM medications ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var medications []models.Medication
	for rows.Next() {
		var med models.Medication
		var stockLevel string
		var lastTaken sql.NullString
		if err := rows.Scan(&med.ID, &med.Name, &med.Dosage, &med.Form,
			&med.Frequency, &med.Timing, &med.DaysLeft, &stockLevel,
			&lastTaken, &med.CurrentCount, &med.TotalCount,
			&med.RefillReminder, &med.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		med.StockLevel = models.ParseStockLevel(stockLevel)
		if lastTaken.Valid && lastTaken.String != "" {
			t := parseTimestamp(lastTaken.String)
			if !t.IsZero() {
				med.LastTaken = &t
			}
		}
		medications = append(medications, med)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range medications {
		assigned, err := s.assignedMembers(ctx, medications[i].ID)
		if err != nil {
			return nil, err
		}
		medications[i].AssignedMembers = assigned
	}
	return medications, nil
}

func (s *Store) assignedMembers(ctx context.Context, medicationID string) ([]string, error) {
	query := `SELECT family_member_id FROM medication_assignments
		WHERE medication_id = ? ORDER BY family_member_id`
	rows, err := s.db.QueryContext(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	assigned := []string{}
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assigned = append(assigned, memberID)
	}
	return assigned, rows.Err()
}

// AddFamilyMember inserts a single family member row
func (s *Store) AddFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	query := `INSERT INTO family_members (id, name, type, relationship, color)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, member.ID, member.Name, member.Type,
		nullIfEmpty(member.Relationship), member.Color)
	if err != nil {
		return fmt.Errorf("failed to add family member: %w", err)
	}
	return nil
}

// UpdateFamilyMember updates a single family member row
func (s *Store) UpdateFamilyMember(ctx context.Context, member models.FamilyMember) error {
	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	query := `UPDATE family_members SET name = ?, type = ?, relationship = ?, color = ?
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, member.Name, member.Type,
		nullIfEmpty(member.Relationship), member.Color, member.ID)
	if err != nil {
		return fmt.Errorf("failed to update family member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("family member %s: %w", member.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteFamilyMember removes a member and its assignment rows. Assignments
// are deleted first so the delete stays orphan-free even without foreign key
// enforcement.
func (s *Store) DeleteFamilyMember(ctx context.Context, memberID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM medication_assignments WHERE family_member_id = ?", memberID); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM family_members WHERE id = ?", memberID); err != nil {
		return fmt.Errorf("failed to delete family member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddMedication inserts a medication row plus its assignment rows
func (s *Store) AddMedication(ctx context.Context, medication models.Medication) error {
	if err := medication.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO medications (
		id, name, dosage, form, frequency, timing, days_left, stock_level,
		last_taken, current_count, total_count, refill_reminder
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		medication.ID, medication.Name, medication.Dosage,
		nullIfEmpty(medication.Form), nullIfEmpty(medication.Frequency),
		nullIfEmpty(medication.Timing), medication.DaysLeft,
		string(medication.StockLevel), formatLastTaken(medication.LastTaken),
		medication.CurrentCount, medication.TotalCount,
		nullIfEmpty(medication.RefillReminder))
	if err != nil {
		return fmt.Errorf("failed to add medication: %w", err)
	}

	for _, memberID := range medication.AssignedMembers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO medication_assignments (medication_id, family_member_id) VALUES (?, ?)",
			medication.ID, memberID); err != nil {
			return fmt.Errorf("failed to add assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateMedication rewrites the medication row and fully replaces its
// assignment rows (delete then reinsert, not diffed).
func (s *Store) UpdateMedication(ctx context.Context, medication models.Medication) error {
	if err := medication.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE medications SET
		name = ?, dosage = ?, form = ?, frequency = ?, timing = ?,
		days_left = ?, stock_level = ?, last_taken = ?, current_count = ?,
		total_count = ?, refill_reminder = ?
	WHERE id = ?`
	result, err := tx.ExecContext(ctx, query,
		medication.Name, medication.Dosage, nullIfEmpty(medication.Form),
		nullIfEmpty(medication.Frequency), nullIfEmpty(medication.Timing),
		medication.DaysLeft, string(medication.StockLevel),
		formatLastTaken(medication.LastTaken), medication.CurrentCount,
		medication.TotalCount, nullIfEmpty(medication.RefillReminder),
		medication.ID)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("medication %s: %w", medication.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM medication_assignments WHERE medication_id = ?", medication.ID); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	for _, memberID := range medication.AssignedMembers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO medication_assignments (medication_id, family_member_id) VALUES (?, ?)",
			medication.ID, memberID); err != nil {
			return fmt.Errorf("failed to add assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteMedication removes a medication and its assignment rows
func (s *Store) DeleteMedication(ctx context.Context, medicationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM medication_assignments WHERE medication_id = ?", medicationID); err != nil {
		return fmt.Errorf("failed to delete assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM medications WHERE id = ?", medicationID); err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TakeDose records one dose taken: reads the current row, applies the
// decrement and reclassification, and writes back the changed columns in one
// transaction.
func (s *Store) TakeDose(ctx context.Context, medicationID string) error {
	return s.mutateInventory(ctx, medicationID, func(med *models.Medication) {
		med.ApplyDose(time.Now())
	})
}

// Refill sets the current count to a user-supplied value, raising capacity
// so totalCount never drops below the new count.
func (s *Store) Refill(ctx context.Context, medicationID string, newCount int) error {
	if newCount < 0 {
		return fmt.Errorf("%w: refill count must not be negative", storage.ErrInvalidInput)
	}
	return s.mutateInventory(ctx, medicationID, func(med *models.Medication) {
		med.ApplyRefill(newCount)
	})
}

func (s *Store) mutateInventory(ctx context.Context, medicationID string, mutate func(*models.Medication)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var med models.Medication
	query := `SELECT COALESCE(current_count, 0), COALESCE(total_count, 0), days_left
		FROM medications WHERE id = ?`
	err = tx.QueryRowContext(ctx, query, medicationID).Scan(
		&med.CurrentCount, &med.TotalCount, &med.DaysLeft)
	if err == sql.ErrNoRows {
		return fmt.Errorf("medication %s: %w", medicationID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read medication: %w", err)
	}

	mutate(&med)

	_, err = tx.ExecContext(ctx,
		"UPDATE medications SET current_count = ?, days_left = ?, stock_level = ?, last_taken = ? WHERE id = ?",
		med.CurrentCount, med.DaysLeft, string(med.StockLevel),
		formatLastTaken(med.LastTaken), medicationID)
	if err != nil {
		return fmt.Errorf("failed to write medication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveFamilyMembers replaces the entire family member collection
func (s *Store) SaveFamilyMembers(ctx context.Context, members []models.FamilyMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM family_members"); err != nil {
		return fmt.Errorf("failed to clear family members: %w", err)
	}
	for _, member := range members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO family_members (id, name, type, relationship, color) VALUES (?, ?, ?, ?, ?)",
			member.ID, member.Name, member.Type, nullIfEmpty(member.Relationship), member.Color); err != nil {
			return fmt.Errorf("failed to insert family member %s: %w", member.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveMedications replaces the entire medication collection and its
// assignment rows
func (s *Store) SaveMedications(ctx context.Context, medications []models.Medication) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM medication_assignments"); err != nil {
		return fmt.Errorf("failed to clear assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM medications"); err != nil {
		return fmt.Errorf("failed to clear medications: %w", err)
	}

	for _, med := range medications {
		_, err := tx.ExecContext(ctx, `INSERT INTO medications (
			id, name, dosage, form, frequency, timing, days_left, stock_level,
			last_taken, current_count, total_count, refill_reminder
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			med.ID, med.Name, med.Dosage, nullIfEmpty(med.Form),
			nullIfEmpty(med.Frequency), nullIfEmpty(med.Timing), med.DaysLeft,
			string(med.StockLevel), formatLastTaken(med.LastTaken),
			med.CurrentCount, med.TotalCount, nullIfEmpty(med.RefillReminder))
		if err != nil {
			return fmt.Errorf("failed to insert medication %s: %w", med.ID, err)
		}
		for _, memberID := range med.AssignedMembers {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO medication_assignments (medication_id, family_member_id) VALUES (?, ?)",
				med.ID, memberID); err != nil {
				return fmt.Errorf("failed to insert assignment for %s: %w", med.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ClearAllData empties all three tables, assignments first
func (s *Store) ClearAllData(ctx context.Context) error {
	tables := []string{"medication_assignments", "medications", "family_members"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// Stats returns row counts for diagnostics
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"family_members", &stats.FamilyMembers},
		{"medications", &stats.Medications},
		{"medication_assignments", &stats.Assignments},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return storage.Stats{}, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatLastTaken(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp accepts both RFC3339 values written by this store and the
// "YYYY-MM-DD HH:MM:SS" format SQLite's CURRENT_TIMESTAMP default produces
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
