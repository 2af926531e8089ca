package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ignite/feed-aggregator/internal/app"
	"github.com/ignite/feed-aggregator/internal/config"
)

const versionsTable = "feed_schema_migrations"

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql files")
	listOnly := flag.Bool("list", false, "list feed tables and applied migrations, then exit")
	configPath := flag.String("config", "config/config.yaml", "config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[migrate] load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("[migrate] %v", err)
	}
	defer db.Close()
	log.Printf("[migrate] Connected to database (driver %s)", cfg.Database.Driver)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+versionsTable+` (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		log.Fatalf("[migrate] create %s: %v", versionsTable, err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		log.Fatalf("[migrate] %v", err)
	}

	if *listOnly {
		if err := listTables(ctx, db); err != nil {
			log.Fatalf("[migrate] %v", err)
		}
		fmt.Printf("Applied migrations: %d\n", len(applied))
		return
	}

	files, err := pendingFiles(*dir, applied)
	if err != nil {
		log.Fatalf("[migrate] %v", err)
	}
	if len(files) == 0 {
		log.Println("[migrate] Nothing to apply")
		return
	}

	for _, f := range files {
		fmt.Printf("  %s ... ", f)
		if err := apply(ctx, db, filepath.Join(*dir, f), f); err != nil {
			fmt.Println("ERROR")
			log.Fatalf("[migrate] %s: %v", f, err)
		}
		fmt.Println("OK")
	}
	log.Printf("[migrate] Applied %d migrations", len(files))
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM `+versionsTable)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func listTables(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename LIKE 'feed\_%' ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}

// pendingFiles returns the unapplied, non-empty *.sql files in name order.
func pendingFiles(dir string, applied map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || applied[e.Name()] {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// apply runs one file and records it in the same transaction.
func apply(ctx context.Context, db *sql.DB, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if strings.TrimSpace(string(data)) != "" {
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+versionsTable+` (name) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}
