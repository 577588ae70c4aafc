package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"

	"github.com/querypilot/querypilot/internal/database"
)

func main() {
	var seed int64
	flag.Int64Var(&seed, "seed", 42, "random seed for reproducible demo data")
	migrate := flag.Bool("migrate", true, "run migrations before seeding")
	flag.Parse()

	dbPath := getEnv("DB_PATH", "demo_sales.db")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./migrations")

	fmt.Println("=== Seeding Demo Sales Data ===")
	fmt.Printf("Database: %s\n", dbPath)

	if *migrate {
		if err := database.RunMigrations(database.MigrationConfig{
			DatabasePath:   dbPath,
			MigrationsPath: migrationsPath,
		}); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("✓ Migrations applied")
	}

	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Seed(context.Background(), db, database.SeedConfig{Seed: seed}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	fmt.Println("✓ Demo data seeded: 10 products, 15 customers, 150 sales")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
