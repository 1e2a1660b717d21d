package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		action = flag.String("action", "up", "migration action: up, down, or version")
		steps  = flag.Int("steps", 0, "number of migrations to apply (0 means all)")
		dir    = flag.String("dir", "migrations", "directory containing migration files")
	)
	flag.Parse()

	databaseURL := os.Getenv("OUTREACH_DATABASE__URL")
	if databaseURL == "" {
		databaseURL = "postgres://localhost:5432/outreach?sslmode=disable"
	}
	// golang-migrate selects the pgx v5 driver by URL scheme.
	databaseURL = strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	databaseURL = strings.Replace(databaseURL, "postgresql://", "pgx5://", 1)

	m, err := migrate.New("file://"+*dir, databaseURL)
	if err != nil {
		log.Fatalf("initializing migrator: %v", err)
	}
	defer m.Close()

	switch *action {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalf("reading version: %v", verr)
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
		return
	default:
		log.Fatalf("unknown action %q", *action)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no pending migrations")
		return
	}
	if err != nil {
		log.Fatalf("running migrations: %v", err)
	}
	fmt.Println("migrations applied")
}
