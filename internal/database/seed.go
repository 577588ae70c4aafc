package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

// Demo catalog data. The seeded database is what the generated SQL
// runs against, so these names must line up with the schema note.
var demoProducts = []struct {
	ID       int
	Name     string
	Category string
}{
	{1, "Laptop Pro 14", "Electronics"},
	{2, "Laptop Air 13", "Electronics"},
	{3, "Wireless Mouse", "Accessories"},
	{4, "Mechanical Keyboard", "Accessories"},
	{5, "Smartphone X", "Mobiles"},
	{6, "Smartphone Lite", "Mobiles"},
	{7, "Washing Machine 7kg", "Home Appliances"},
	{8, "Refrigerator 300L", "Home Appliances"},
	{9, "LED TV 43 inch", "Electronics"},
	{10, "Air Conditioner 1.5T", "Home Appliances"},
}

var demoCustomerNames = []string{
	"Asha Sharma", "Ravi Kumar", "Priya Mehta", "Rahul Singh", "Neha Patel",
	"Arjun Verma", "Simran Gupta", "Vivek Yadav", "Aditya Kapoor",
	"Kiran Reddy", "Zoya Khan", "Imran Shaikh", "Meera Joshi",
	"Ramesh Das", "Suhani Goyal",
}

var demoCities = []string{"Bengaluru", "Mumbai", "Delhi", "Hyderabad", "Chennai"}

// Base price per product ID, jittered per sale
var demoPriceMap = map[int]float64{
	1:  90000,
	2:  70000,
	3:  1200,
	4:  3500,
	5:  65000,
	6:  35000,
	7:  18000,
	8:  24000,
	9:  34000,
	10: 42000,
}

const demoSalesCount = 150

// SeedConfig controls demo data generation
type SeedConfig struct {
	// Seed makes generation reproducible; 0 uses the current time
	Seed int64
}

// Seed populates the demo tables with products, customers, and sales.
// Existing rows are removed first so the command is idempotent.
func Seed(ctx context.Context, db *sql.DB, cfg SeedConfig) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sales", "customers", "products"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	for _, p := range demoProducts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO products (product_id, product_name, category) VALUES (?, ?, ?)",
			p.ID, p.Name, p.Category); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", p.ID, err)
		}
	}

	for i, name := range demoCustomerNames {
		city := demoCities[rng.Intn(len(demoCities))]
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO customers (customer_id, name, city) VALUES (?, ?, ?)",
			i+1, name, city); err != nil {
			return fmt.Errorf("failed to insert customer %d: %w", i+1, err)
		}
	}

	for id := 1; id <= demoSalesCount; id++ {
		productID := rng.Intn(len(demoProducts)) + 1
		customerID := rng.Intn(len(demoCustomerNames)) + 1
		quantity := rng.Intn(10) + 1
		price := jitterPrice(rng, demoPriceMap[productID])
		date := randomDate(rng, 2023, 2025)

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sales (id, date, product_id, customer_id, quantity, price) VALUES (?, ?, ?, ?, ?, ?)",
			id, date, productID, customerID, quantity, price); err != nil {
			return fmt.Errorf("failed to insert sale %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	return nil
}

// jitterPrice spreads sale prices around the catalog base price.
// Cheap products could otherwise jitter below zero, so the result is
// floored at a tenth of the base.
func jitterPrice(rng *rand.Rand, base float64) float64 {
	price := base + float64(rng.Intn(4001)-2000)
	if floor := base / 10; price < floor {
		return floor
	}
	return price
}

// randomDate returns an ISO date between Jan 1 of startYear and Dec 31 of endYear
func randomDate(rng *rand.Rand, startYear, endYear int) string {
	start := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, rng.Intn(days+1)).Format("2006-01-02")
}
