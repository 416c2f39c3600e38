package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-chat/config"
	"storefront-chat/pkg/database"
)

const usage = `
Storefront Chat - Relay Database Tool

Usage:
  migrate [command]

Commands:
  up          Create the chat tables and indexes
  down        Drop the chat tables (DANGEROUS)
  status      Show connection status and row counts
  seed        Upsert the demo users
  reset       Drop, re-create and seed (DANGEROUS)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed
  go run ./cmd/migrate status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command {
	case "up":
		runMigrationsUp(ctx, pool)
	case "down":
		runMigrationsDown(ctx, pool)
	case "status":
		showStatus(ctx, pool)
	case "seed":
		runSeed(ctx, pool)
	case "reset":
		runMigrationsDown(ctx, pool)
		runMigrationsUp(ctx, pool)
		runSeed(ctx, pool)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("🚀 Running migrations UP...")
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Migrations completed successfully!")
}

func runMigrationsDown(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("⬇️  Dropping chat tables...")
	if err := database.DropAll(ctx, pool); err != nil {
		log.Fatalf("❌ Rollback failed: %v", err)
	}
	log.Println("✅ Rollback completed successfully!")
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(ctx, pool); err != nil {
		log.Fatalf("❌ Health check failed: %v", err)
	}
	log.Println("✅ Health check: PASSED")

	counts, err := database.TableCounts(ctx, pool)
	if err != nil {
		log.Printf("⚠️  Could not count rows: %v", err)
		return
	}
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		log.Printf("✅ Table %-20s %d rows", table, counts[table])
	}
}

func runSeed(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("🌱 Seeding demo users...")
	users := database.DemoUsers()
	if err := database.Seed(ctx, pool, users); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	for _, u := range users {
		log.Printf("   - %-8s %-14s %s", u.ID, u.Role, u.Name)
	}
	log.Println("✅ Seeding completed!")
}
