package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"FinBoard/internal/config"
	"FinBoard/internal/engine"
	"FinBoard/internal/notifier"
	"FinBoard/internal/resolver"
	"FinBoard/internal/scheduler"
	"FinBoard/internal/server"
	"FinBoard/internal/source"
	"FinBoard/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] FinBoard starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init price source
	var src source.Source
	if cfg.DataSource.Provider == "demo" {
		src = source.NewDemoSource()
	} else {
		src = source.NewYahooSource(cfg.Proxy)
	}
	log.Printf("[INFO] price source: %s", src.Name())

	// Init store
	var st store.Store
	sqliteStore, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		log.Printf("[WARN] init sqlite store failed, using in-memory store: %v", err)
		st = store.NewMemoryStore()
	} else {
		if err := sqliteStore.SeedDemo(); err != nil {
			log.Printf("[WARN] seed demo data: %v", err)
		}
		st = sqliteStore
	}
	defer st.Close()

	// Init resolver and engine
	res := resolver.New(src, time.Duration(cfg.DataSource.ResolveTimeoutSeconds)*time.Second)
	eng := engine.New(res, st, cfg.DataSource.MaxParallelResolves)

	// Init notifier
	var n notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[INFO] received %s, stopping...", sig)
		cancel()
	}()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, st, res, n)
	if err := sched.Register(cfg.Schedule.CycleCron); err != nil {
		log.Fatalf("[FATAL] register cycle task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run a cycle immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing evaluation cycle now")
		go sched.RunCycleNow()
	}

	// HTTP API
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(st, res, cfg.Server.APIToken).Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[INFO] HTTP API listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] %v", err)
	}
	log.Println("[INFO] FinBoard stopped")
}
