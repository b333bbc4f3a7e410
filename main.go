package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/curatorbackend/analysis"
	"github.com/camden-git/curatorbackend/config"
	"github.com/camden-git/curatorbackend/database"
	"github.com/camden-git/curatorbackend/handlers"
	"github.com/camden-git/curatorbackend/ingest"
	"github.com/camden-git/curatorbackend/media"
	"github.com/camden-git/curatorbackend/realtime"
	"github.com/camden-git/curatorbackend/repository"
	"github.com/camden-git/curatorbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ImagesPath, cfg.ThumbnailsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeOriginal:  filepath.Base(cfg.ImagesPath),
		media.AssetTypeThumbnail: filepath.Base(cfg.ThumbnailsPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}

	imageRepo := repository.NewImageRepository(db)

	analyzer := analysis.NewClient(cfg.AnalysisBaseURL, cfg.AnalysisModel, cfg.AnalysisPrompt, cfg.AnalysisTimeout)
	log.Printf("Analysis service: %s (model %s, timeout %s)", cfg.AnalysisBaseURL, cfg.AnalysisModel, cfg.AnalysisTimeout)

	log.Printf("Initializing thumbnail worker pool (Workers: %d, Queue Size: %d)...", cfg.NumThumbnailWorkers, cfg.ThumbnailQueueSize)
	thumbProcessor := workers.NewThumbnailProcessor(imageRepo, mediaStore, cfg.ThumbnailMaxSize, cfg.ThumbnailQueueSize, cfg.NumThumbnailWorkers)
	defer thumbProcessor.Shutdown()

	orchestrator := ingest.NewOrchestrator(imageRepo, mediaStore, analyzer, thumbProcessor)

	hub := realtime.NewHub()
	go hub.Run()

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing originals in: %s", cfg.ImagesPath)
	log.Printf("Storing thumbnails in: %s", cfg.ThumbnailsPath)
	log.Printf("Thumbnail max size (longest side): %dpx", cfg.ThumbnailMaxSize)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	imageHandler := &handlers.ImageHandler{Repo: imageRepo, Blobs: mediaStore, Analyzer: analyzer}
	ingestHandler := &handlers.IngestHandler{Orchestrator: orchestrator, Hub: hub}
	statsHandler := &handlers.StatsHandler{DB: sqlDB}

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Get("/", imageHandler.ListImages)
			r.Post("/", ingestHandler.IngestSingle)
			r.Post("/batch", ingestHandler.IngestBatch)
			r.Post("/check-duplicate", imageHandler.CheckDuplicate)
			r.Get("/available", imageHandler.ListAvailableImages)
			r.Route("/{image_id}", func(r chi.Router) {
				r.Get("/", imageHandler.GetImage)
				r.Post("/approve", imageHandler.ApproveImage)
				r.Post("/reanalyze", imageHandler.ReanalyzeImage)
				r.Delete("/", imageHandler.DeleteImage)
			})
		})

		r.Get("/stats", statsHandler.GetStats)
		r.Get("/ws", hub.ServeWS)

		// originals are mounted under /originals so the route cannot collide
		// with the /images API surface
		imagesSubDir := filepath.Base(cfg.ImagesPath)
		r.Get("/originals/*", handlers.AssetServer(cfg.MediaStoragePath, imagesSubDir, "originals"))
		log.Printf("Registered original image server at /originals/* (dir %s)", imagesSubDir)

		thumbnailSubDir := filepath.Base(cfg.ThumbnailsPath)
		r.Get("/thumbnails/*", handlers.AssetServer(cfg.MediaStoragePath, thumbnailSubDir, "thumbnails"))
		log.Printf("Registered thumbnail server at /thumbnails/* (dir %s)", thumbnailSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3004"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// a batch ingestion holds its response open for the whole run, one
		// analysis call per item; no write timeout here, the analysis client
		// bounds each step instead
		IdleTimeout: 120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
