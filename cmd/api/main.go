package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/audit"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/auth"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/config"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/httpapi"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/obs"
)

var version = "1.2.0"

func main() {
	// A missing signing secret must stop the process here, not fail
	// silently per request.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DSN == "" {
		log.Fatalf("config: SIM_PG_DSN is required")
	}

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("SIM_BUILD_COMMIT"))

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := auth.NewTokenCodec(cfg.TokenSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	svc, err := auth.NewService(
		auth.NewPGStore(db),
		codec,
		auth.WithAuditRecorder(audit.NewRecorder(audit.NewPGStore(db))),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, cfg.CookieSecure)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting simuladores-api %s on %s (env=%s)", version, srv.Addr, cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
