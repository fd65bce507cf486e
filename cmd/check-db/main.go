// Package main is a diagnostic tool for inspecting live access-control data.
// It connects with the regular server config, prints each project with its
// status, CORS policy source, and active API key count, and exits non-zero on
// any failure so it can gate CI/CD deployments on a reachable, populated
// database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/corebase/corebase/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("=== PROJECTS ===")
	rows, err := db.Query(`
		SELECT p.id, p.slug, p.status,
		       EXISTS (SELECT 1 FROM cors_policies cp WHERE cp.project_id = p.id) AS has_cors,
		       (SELECT COUNT(*) FROM api_keys k WHERE k.project_id = p.id AND k.revoked_at IS NULL) AS active_keys
		FROM projects p
		ORDER BY p.id`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var slug, status string
		var hasCORS bool
		var activeKeys int
		if err := rows.Scan(&id, &slug, &status, &hasCORS, &activeKeys); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		corsSource := "global/fallback"
		if hasCORS {
			corsSource = "project policy"
		}
		fmt.Printf("  #%d %s [%s] cors=%s active_keys=%d\n", id, slug, status, corsSource, activeKeys)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Row iteration failed: %v", err)
	}
	fmt.Printf("Total projects: %d\n", count)

	var hasGlobal bool
	if err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM cors_policies WHERE project_id IS NULL)").Scan(&hasGlobal); err != nil {
		log.Fatalf("Global CORS check failed: %v", err)
	}
	fmt.Printf("Global CORS row: %v\n", hasGlobal)
}
