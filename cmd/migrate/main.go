package main

import (
	"fmt"
	"log"
	"os"

	"github.com/querypilot/querypilot/internal/database"
)

func main() {
	dbPath := getEnv("DB_PATH", "demo_sales.db")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./migrations")

	fmt.Println("=== Running Database Migrations ===")
	fmt.Printf("Database: %s\n", dbPath)

	migrationConfig := database.MigrationConfig{
		DatabasePath:   dbPath,
		MigrationsPath: migrationsPath,
	}

	if err := database.RunMigrations(migrationConfig); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("✓ Database migrations completed successfully!")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
