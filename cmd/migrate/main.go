package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn           = flag.String("dsn", os.Getenv("SIM_PG_DSN"), "PostgreSQL DSN")
		adminEmail    = flag.String("admin-email", os.Getenv("SIM_ADMIN_EMAIL"), "Bootstrap admin email (bootstrap command)")
		adminPassword = flag.String("admin-password", os.Getenv("SIM_ADMIN_PASSWORD"), "Bootstrap admin password (bootstrap command)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or SIM_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|status|bootstrap]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "bootstrap":
		var created bool
		created, err = migrate.BootstrapAdmin(ctx, db, *adminEmail, *adminPassword)
		if err == nil {
			if created {
				fmt.Println("admin account created")
			} else {
				fmt.Println("admin account already present")
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
