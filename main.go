package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serpwatch/config"
	"serpwatch/httputil"
	"serpwatch/logging"
	"serpwatch/scheduler"
	"serpwatch/scraper"
	"serpwatch/services"
	"serpwatch/storage"
	"serpwatch/workers"
)

var (
	runOnce = flag.Bool("run", false, "Drain the submitted queue once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting serpwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d platform configs", len(cfg.Platforms))
	for id, platform := range cfg.Platforms {
		log.Printf("  - %s (%s), %d watched quer(ies)", platform.Name, id, len(platform.Watch))
	}

	clients := httputil.NewClients()

	ctx := context.Background()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	queueStore, err := storage.NewQueueStore(cfg.QueuePath)
	if err != nil {
		log.Fatalf("Failed to open queue database: %v", err)
	}
	defer queueStore.Close()
	log.Printf("Queue database: %s", cfg.QueuePath)

	serpService := services.NewSerpService(pgStore)
	client := scraper.NewClient(cfg.Unblocker.BaseURL, cfg.Unblocker.APIKey, clients.API, clients.Polling)

	orchestrator := scraper.NewOrchestrator(cfg, queueStore, pgStore, serpService, client)

	if *runOnce {
		log.Println("Running one batch...")
		if err := orchestrator.RunBatch(ctx); err != nil {
			log.Fatalf("Batch failed: %v", err)
		}
		log.Println("Batch complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var uploader workers.Uploader
	if cfg.Storage.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to init storage uploader: %v", err)
		}
		uploader = s3Uploader
		log.Printf("Storage bucket: %s", cfg.Storage.Bucket)
	} else {
		uploader = workers.NewNoOpUploader()
		log.Println("No storage bucket configured, renderings will not be uploaded")
	}

	renderingWorker := workers.NewRenderingWorker(pgStore, uploader)
	go renderingWorker.Run(ctx, 10, 2*time.Minute)
	orchestrator.SetRenderTrigger(renderingWorker.Trigger)
	log.Println("Rendering worker started")

	sched := scheduler.New(cfg, orchestrator, queueStore)
	sched.SetRenderingWorker(renderingWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
