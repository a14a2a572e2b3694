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
	"github.com/robfig/cron/v3"

	"github.com/mesaplatform/mesa/internal/auth"
	"github.com/mesaplatform/mesa/internal/catalog"
	"github.com/mesaplatform/mesa/internal/config"
	"github.com/mesaplatform/mesa/internal/httpapi"
	"github.com/mesaplatform/mesa/internal/obs"
	"github.com/mesaplatform/mesa/internal/profile"
	"github.com/mesaplatform/mesa/internal/venue"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("MESA_COMMIT"))

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dsn, err := cfg.BuildPostgresDSN()
	if err != nil {
		log.Fatalf("postgres dsn: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	authSvc, err := auth.NewService(auth.NewPGStore(db), cfg.AuthSecret)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	profileSvc := profile.NewService(profile.NewPGStore(db))
	venueSvc := venue.NewService(venue.NewPGStore(db))
	catalogSvc := catalog.NewService(catalog.NewPGStore(db))

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := authSvc.EnsureBuiltins(startCtx); err != nil {
		log.Fatalf("ensure permissions: %v", err)
	}
	if err := catalogSvc.EnsureBuiltins(startCtx); err != nil {
		log.Fatalf("ensure allergens: %v", err)
	}
	cancelStart()

	api := httpapi.New(httpapi.Options{
		Auth:       authSvc,
		Profiles:   profileSvc,
		Venues:     venueSvc,
		Catalog:    catalogSvc,
		Ready:      httpapi.ReadyProbe{DB: db},
		Version:    version,
		Production: cfg.Production(),
	})

	// Expired sessions accumulate between logins; sweep them hourly.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := authSvc.PurgeExpiredSessions(ctx)
		if err != nil {
			obs.Logger().WithError(err).Warn("session sweep failed")
			return
		}
		if n > 0 {
			obs.AddSessionsPurged(n)
			obs.Logger().WithField("purged", n).Info("session sweep")
		}
	}); err != nil {
		log.Fatalf("schedule session sweep: %v", err)
	}
	sweeper.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mesa-api %s on %s", version, srv.Addr)

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

	<-sweeper.Stop().Done()
	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
