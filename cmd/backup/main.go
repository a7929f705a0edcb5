package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"familymeds/internal/config"
	"familymeds/internal/migration"
	"familymeds/internal/models"
	"familymeds/internal/service"
	"familymeds/internal/storage"
	"familymeds/internal/storage/keyvalue"
	"familymeds/internal/storage/platform"
	"familymeds/internal/storage/sqlite"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	rollbackCmd := flag.NewFlagSet("rollback", flag.ExitOnError)
	compareCmd := flag.NewFlagSet("compare", flag.ExitOnError)
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	notifyCmd := flag.NewFlagSet("notify", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, cfg, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, cfg, *importInput, *importClear)

	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		handleMigrate(ctx, cfg)

	case "rollback":
		rollbackCmd.Parse(os.Args[2:])
		handleRollback(ctx, cfg)

	case "compare":
		compareCmd.Parse(os.Args[2:])
		handleCompare(ctx, cfg)

	case "stats":
		statsCmd.Parse(os.Args[2:])
		handleStats(ctx, cfg)

	case "notify":
		notifyCmd.Parse(os.Args[2:])
		handleNotify(ctx, cfg)

	default:
		printUsage()
		os.Exit(1)
	}
}

// activeService opens the backend the selection rule picks for this
// environment
func activeService(cfg *config.Config) *platform.Service {
	return platform.New(cfg)
}

// keyValueStore opens the key-value backend directly, ignoring the selection
// rule. Used as migration source and rollback destination.
func keyValueStore(cfg *config.Config) storage.Store {
	if cfg.RedisAddr == "" {
		return keyvalue.New(keyvalue.NewMemoryKV())
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return keyvalue.New(keyvalue.NewRedisKV(client))
}

// sqliteStore opens the relational backend directly
func sqliteStore(cfg *config.Config) *sqlite.Store {
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return store
}

func handleExport(ctx context.Context, cfg *config.Config, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	svc := activeService(cfg)
	defer svc.Close()

	members, err := svc.GetFamilyMembers(ctx)
	if err != nil {
		log.Fatalf("Failed to read family members: %v", err)
	}
	medications, err := svc.GetMedications(ctx)
	if err != nil {
		log.Fatalf("Failed to read medications: %v", err)
	}

	backup := models.Backup{
		Version:       1,
		FamilyMembers: members,
		Medications:   medications,
		Timestamp:     time.Now().UTC(),
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode backup: %v", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Fatalf("Failed to write backup file: %v", err)
	}

	log.Printf("Exported %d family members and %d medications to %s (%d bytes)",
		len(members), len(medications), outputPath, len(data))
}

func handleImport(ctx context.Context, cfg *config.Config, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to read backup file: %v", err)
	}
	var backup models.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		log.Fatalf("Failed to decode backup file: %v", err)
	}

	svc := activeService(cfg)
	defer svc.Close()

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}

		log.Println("Clearing existing data...")
		if err := svc.ClearAllData(ctx); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
	}

	log.Printf("Importing backup from: %s", inputPath)
	if err := svc.SaveFamilyMembers(ctx, backup.FamilyMembers); err != nil {
		log.Fatalf("Failed to import family members: %v", err)
	}
	if err := svc.SaveMedications(ctx, backup.Medications); err != nil {
		log.Fatalf("Failed to import medications: %v", err)
	}

	log.Printf("Imported %d family members and %d medications",
		len(backup.FamilyMembers), len(backup.Medications))
}

func handleMigrate(ctx context.Context, cfg *config.Config) {
	source := keyValueStore(cfg)
	defer source.Close()
	target := sqliteStore(cfg)
	defer target.Close()

	m := migration.New(source, target)
	ok, err := m.Migrate(ctx)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if ok {
		log.Println("Relational storage is ready")
	}
}

func handleRollback(ctx context.Context, cfg *config.Config) {
	fmt.Print("WARNING: This will overwrite key-value storage with database contents. Type 'yes' to confirm: ")
	var confirmation string
	fmt.Scanln(&confirmation)
	if confirmation != "yes" {
		log.Println("Rollback cancelled")
		return
	}

	source := keyValueStore(cfg)
	defer source.Close()
	target := sqliteStore(cfg)
	defer target.Close()

	m := migration.New(source, target)
	if err := m.RollbackToOldStorage(ctx); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
}

func handleCompare(ctx context.Context, cfg *config.Config) {
	source := keyValueStore(cfg)
	defer source.Close()
	target := sqliteStore(cfg)
	defer target.Close()

	m := migration.New(source, target)
	result, err := m.Compare(ctx)
	if err != nil {
		log.Fatalf("Compare failed: %v", err)
	}

	fmt.Printf("Key-value storage: %d family members, %d medications\n",
		result.Source.FamilyMembers, result.Source.Medications)
	fmt.Printf("Relational storage: %d family members, %d medications, %d assignments\n",
		result.Target.FamilyMembers, result.Target.Medications, result.Target.Assignments)
	if result.Match {
		fmt.Println("Counts match")
	} else {
		fmt.Println("Counts DO NOT match")
	}
}

func handleStats(ctx context.Context, cfg *config.Config) {
	svc := activeService(cfg)
	defer svc.Close()

	stats, err := svc.GetStorageStats(ctx)
	if err != nil {
		log.Fatalf("Failed to read storage stats: %v", err)
	}

	fmt.Printf("Backend:        %s\n", stats.StorageType)
	fmt.Printf("Platform:       %s\n", stats.Platform)
	fmt.Printf("Family members: %d\n", stats.FamilyMembers)
	fmt.Printf("Medications:    %d\n", stats.Medications)
	fmt.Printf("Assignments:    %d\n", stats.Assignments)
}

func handleNotify(ctx context.Context, cfg *config.Config) {
	svc := activeService(cfg)
	defer svc.Close()

	low, err := svc.LowStockMedications(ctx)
	if err != nil {
		log.Fatalf("Failed to read medications: %v", err)
	}
	if len(low) == 0 {
		log.Println("All medications are well stocked")
		return
	}

	alerts, err := service.NewAlertService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AlertEmail, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create alert service: %v", err)
	}
	if err := alerts.SendLowStockDigest(ctx, low); err != nil {
		log.Fatalf("Failed to send digest: %v", err)
	}
}

func printUsage() {
	fmt.Println("FamilyMeds Storage Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export storage to JSON file")
	fmt.Println("  backup import [options]    Import storage from JSON file")
	fmt.Println("  backup migrate             Migrate key-value storage to the database")
	fmt.Println("  backup rollback            Copy database contents back to key-value storage")
	fmt.Println("  backup compare             Compare entity counts across both backends")
	fmt.Println("  backup stats               Show active backend and entity counts")
	fmt.Println("  backup notify              Email a low stock digest via SES")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STORAGE_BACKEND  Backend selection: auto, sqlite, keyvalue, or memory (default: auto)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familymeds.db)")
	fmt.Println("  REDIS_ADDR       Redis address for the key-value backend")
	fmt.Println("  SES_FROM_EMAIL   Sender address for SES alerts (alerts disabled when empty)")
	fmt.Println("  ALERT_EMAIL      Recipient address for low stock digests")
}
