package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediagrab/orchestrator/internal/api"
	"github.com/mediagrab/orchestrator/internal/cleanup"
	"github.com/mediagrab/orchestrator/internal/config"
	"github.com/mediagrab/orchestrator/internal/diagnostics"
	"github.com/mediagrab/orchestrator/internal/extract"
	"github.com/mediagrab/orchestrator/internal/hub"
	"github.com/mediagrab/orchestrator/internal/job"
	"github.com/mediagrab/orchestrator/internal/scheduler"
	"github.com/mediagrab/orchestrator/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to optional YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
		cfg = loaded
	}

	log.Printf("Starting download orchestrator")
	log.Printf("HTTP port: %d, max concurrent: %d, policy: %s", cfg.HTTPPort, cfg.MaxConcurrent, cfg.QueuePolicy)

	var store job.JobStore
	var persistent *job.PersistentStore
	if cfg.PersistJobs {
		var err error
		persistent, err = job.NewPersistentStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("Persistent store error: %v", err)
		}
		store = persistent
		log.Printf("Job store: persistent (%s)", cfg.DataDir)
	} else {
		store = job.NewStore()
		log.Printf("Job store: in-memory")
	}

	files, err := storage.NewStore(cfg.DownloadDir)
	if err != nil {
		log.Fatalf("Storage error: %v", err)
	}

	patterns, err := job.CompilePatterns(cfg.URLPatterns)
	if err != nil {
		log.Fatalf("URL pattern error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := hub.New()
	runner := extract.NewRunner(store, notifier, files, extract.Options{
		BinPath: cfg.ExtractorPath,
		Timeout: cfg.JobTimeout,
	})
	sched := scheduler.New(ctx, store, runner, scheduler.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		Policy:        scheduler.Policy(cfg.QueuePolicy),
		URLPatterns:   patterns,
	})

	janitor := cleanup.NewJanitor(store, files, cfg.RetentionWindow, cfg.CleanupInterval)
	go janitor.Start(ctx)

	checker := diagnostics.NewChecker(cfg.ExtractorPath, cfg.ProbeURL)
	router := api.NewRouter(sched, store, notifier, files, checker)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // file streaming and websocket pushes are long-lived
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	sched.Wait()
	if persistent != nil {
		if err := persistent.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	}

	log.Println("Server stopped")
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mediagrab - media download orchestrator\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration is read from the environment (optionally a .env file);\n")
		fmt.Fprintf(os.Stderr, "a YAML file passed via -config overrides it.\n")
	}
}
