package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laundriku/agent/internal/config"
	"laundriku/agent/internal/connectivity"
	"laundriku/agent/internal/events"
	"laundriku/agent/internal/httpapi"
	sqlitestore "laundriku/agent/internal/localstore/sqlite"
	"laundriku/agent/internal/queue"
	"laundriku/agent/internal/refcache"
	"laundriku/agent/internal/remote"
	remotememory "laundriku/agent/internal/remote/memory"
	remotepg "laundriku/agent/internal/remote/postgres"
	"laundriku/agent/internal/syncer"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	local := sqlitestore.New(cfg.LocalDBPath)
	if err := local.Init(ctx); err != nil {
		log.Fatalf("local store unavailable: %v", err)
	}
	closers = append(closers, local.Close)
	log.Printf("local store: sqlite (%s)", cfg.LocalDBPath)

	var remoteStore remote.Store
	if cfg.DatabaseURL != "" {
		pg, err := remotepg.New(ctx, cfg.DatabaseURL)
		if err != nil {
			// The remote being down is the normal offline case; the monitor will
			// keep probing and the queue keeps accepting sales meanwhile.
			log.Printf("remote store unreachable at startup (%v), continuing offline", err)
			pg, err = remotepg.NewDeferred(cfg.DatabaseURL)
			if err != nil {
				log.Fatalf("invalid DATABASE_URL: %v", err)
			}
		}
		remoteStore = pg
		closers = append(closers, pg.Close)
		log.Println("remote store: postgres")
	} else {
		remoteStore = remotememory.NewSeeded()
		log.Println("remote store: in-memory (dev)")
	}

	publisher := events.Publisher(events.NewNoopPublisher())
	if cfg.RedisAddr != "" {
		redisPub, err := events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.OutletID)
		if err != nil {
			log.Printf("redis unavailable (%v), using noop publisher", err)
		} else {
			publisher = redisPub
			closers = append(closers, redisPub.Close)
			log.Println("events: redis")
		}
	} else {
		log.Println("events: noop")
	}

	monitor := connectivity.NewMonitor(remoteStore, time.Duration(cfg.ProbeIntervalSeconds)*time.Second)
	reconciler := syncer.NewReconciler(local, remoteStore, monitor, publisher)
	queueManager := queue.NewManager(local, publisher, cfg.OperatorUserID)
	refCache := refcache.New(local, remoteStore, monitor)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	if err := auth.SeedUser("admin", cfg.SeedAdminPassword, "admin"); err != nil {
		log.Fatalf("seed admin account: %v", err)
	}
	if err := auth.SeedUser("kasir", cfg.SeedKasirPassword, "kasir"); err != nil {
		log.Fatalf("seed kasir account: %v", err)
	}

	api := httpapi.New(queueManager, refCache, reconciler, auth, cfg.AllowedOrigin)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	transitions := monitor.Subscribe()
	monitor.Start(runCtx)
	go reconciler.Run(runCtx, transitions, time.Duration(cfg.SyncIntervalSeconds)*time.Second)
	go func() {
		if err := refCache.Refresh(runCtx); err != nil {
			log.Printf("initial catalog refresh: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("sync agent listening on %s (outlet %s)", cfg.Address(), cfg.OutletID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	runCancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("agent stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be set")
	}
	if len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	if cfg.SeedKasirPassword != "" && len(cfg.SeedKasirPassword) < 8 {
		return fmt.Errorf("SEED_KASIR_PASSWORD must be at least 8 characters")
	}
	return nil
}
