// Command init-db drops and recreates the three tables. Destructive, so it
// refuses to run without an explicit --yes flag (spec §6 CLI surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/clusterqueue/clusterqueue/internal/config"
	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

func main() {
	confirm := flag.Bool("yes", false, "confirm the destructive drop-and-recreate")
	flag.Parse()

	if !*confirm {
		fmt.Fprintln(os.Stderr, "init-db: this drops and recreates all tables; re-run with --yes to confirm")
		os.Exit(1)
	}

	cfg, err := config.LoadFromRepoRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init-db: config:", err)
		os.Exit(1)
	}

	dialect := store.Dialect(cfg.Store.Driver)
	db, err := store.Open(dialect, cfg.Store.DSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init-db: open store:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecuteMany(ctx, domain.DropTableStatements()); err != nil {
		fmt.Fprintln(os.Stderr, "init-db: drop tables:", err)
		os.Exit(1)
	}
	if _, err := db.ExecuteMany(ctx, domain.CreateTableStatements(dialect)); err != nil {
		fmt.Fprintln(os.Stderr, "init-db: create tables:", err)
		os.Exit(1)
	}

	fmt.Println("init-db: tables recreated")
}
