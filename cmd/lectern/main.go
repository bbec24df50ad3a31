package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"lectern/internal/catalog"
	"lectern/internal/config"
	"lectern/internal/playback"
	"lectern/internal/scheduler"
	"lectern/internal/server"
	"lectern/internal/store"
	"lectern/internal/upload"
	"lectern/migrations"
)

func main() {
	configPath := flag.String("config", envOr("LECTERN_CONFIG", "lectern.toml"), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal(err)
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer s.Close()

	if cfg.MigrationsDir != "" {
		err = s.Migrate(cfg.MigrationsDir)
	} else {
		err = s.MigrateFS(migrations.FS)
	}
	if err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	client, err := catalog.NewClient(cfg.Backend.URL,
		catalog.WithToken(cfg.Backend.Token),
		catalog.WithTimeout(cfg.Backend.Timeout),
		catalog.WithRateLimit(rate.Limit(cfg.Backend.RateLimit), cfg.Backend.Burst),
	)
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}
	cat := catalog.New(client, catalog.WithSnapshotStore(s))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch := scheduler.New(cat, cfg.Subjects, scheduler.WithInterval(cfg.RefreshInterval))
	sch.Start(ctx)
	defer sch.Stop()

	mounts := playback.NewMountTable()
	controller := playback.NewController(mounts, cat,
		playback.WithMountTimeout(cfg.Playback.MountTimeout),
		playback.WithStartTimeout(cfg.Playback.StartTimeout),
	)
	uploads := upload.NewSession(client, cat, upload.WithRecorder(s))

	opts := []server.Option{
		server.WithPlayback(controller, mounts),
		server.WithCatalog(cat, client),
		server.WithUploads(uploads),
	}
	if cfg.CORSOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(cfg.CORSOrigin))
	}
	srv := server.NewServer(s, opts...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Lectern listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
