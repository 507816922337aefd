package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ai"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/app"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/blob"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/config"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/export"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/ingest"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/search"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/session"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/standards"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	var blobs blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO object storage at %s", cfg.MinioEndpoint)
		blobs, err = blob.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
	} else {
		log.Printf("Using local blob storage under %s", cfg.DataDir)
		blobs, err = blob.NewLocalStore(filepath.Join(cfg.DataDir, "blobs"))
		if err != nil {
			log.Fatalf("local blob store failed: %v", err)
		}
	}
	defer blobs.Close()

	pgSearch := search.NewPgSearch(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgSearch)
	searchService.ReindexAllFromPG(ctx)

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for workflow sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, time.Duration(cfg.SessionTTL)*time.Second)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		sessions = redisStore
	} else {
		log.Printf("Using in-memory workflow sessions")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()

	client, err := ai.NewClient(ai.ProviderConfig{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		BaseURL:  cfg.AIBaseURL,
		Model:    cfg.AIModel,
	})
	if err != nil {
		log.Fatalf("ai client: %v", err)
	}
	aiService := ai.NewService(client, cfg.TokenCeiling)

	parser := ingest.NewParser(ingest.Options{
		OCREnabled:       cfg.OCREnabled,
		OCRBinary:        cfg.OCRBinary,
		OCRMinConfidence: cfg.OCRMinConfidence,
		TableExtraction:  cfg.TableExtraction,
	})

	catalog := standards.NewService(dataStore, blobs, searchService)
	exporter := export.NewService(cfg.PDFFontPath)

	service := app.NewService(app.ServiceDeps{
		Config:    cfg,
		Store:     dataStore,
		Sessions:  sessions,
		Blobs:     blobs,
		Parser:    parser,
		AI:        aiService,
		Export:    exporter,
		Standards: catalog,
		Searcher:  searchService,
		Ping:      db.PingContext,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Bid review API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
