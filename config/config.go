package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultImagesSubDir     = "images"
	DefaultThumbnailsSubDir = "thumbnails"
)

const (
	defaultThumbnailQueueSize  = 200
	defaultNumThumbnailWorkers = 2
	defaultThumbnailMaxSize    = 300
	defaultAnalysisTimeoutSecs = 120
)

type Config struct {
	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for stored assets (originals, thumbs)
	ImagesPath       string // full calculated path for stored originals
	ThumbnailsPath   string // full calculated path for thumbnails

	// thumbnail generation settings
	ThumbnailMaxSize int

	// worker settings
	ThumbnailQueueSize  int
	NumThumbnailWorkers int

	// vision analysis service (OpenAI-compatible chat completions endpoint)
	AnalysisBaseURL string
	AnalysisModel   string
	AnalysisPrompt  string // empty uses the client's default prompt
	AnalysisTimeout time.Duration
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "images.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	imagesSubDir := getEnvOrDefault("IMAGES_SUBDIR", DefaultImagesSubDir)
	absImagesPath := filepath.Join(absMediaStorage, imagesSubDir)

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	thumbMaxSize := getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize)
	queueSize := getEnvIntOrDefault("THUMBNAIL_QUEUE_SIZE", defaultThumbnailQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_THUMBNAIL_WORKERS", defaultNumThumbnailWorkers)

	analysisBaseURL := getEnvOrDefault("ANALYSIS_BASE_URL", "http://localhost:1234")
	analysisModel := getEnvOrDefault("ANALYSIS_MODEL", "qwen2-vl-7b-instruct")
	analysisPrompt := os.Getenv("ANALYSIS_PROMPT")
	analysisTimeout := getEnvIntOrDefault("ANALYSIS_TIMEOUT_SECONDS", defaultAnalysisTimeoutSecs)

	cfg := Config{
		DatabasePath:        dbPath,
		MediaStoragePath:    absMediaStorage,
		ImagesPath:          absImagesPath,
		ThumbnailsPath:      absThumbnailsPath,
		ThumbnailMaxSize:    thumbMaxSize,
		ThumbnailQueueSize:  queueSize,
		NumThumbnailWorkers: numWorkers,
		AnalysisBaseURL:     analysisBaseURL,
		AnalysisModel:       analysisModel,
		AnalysisPrompt:      analysisPrompt,
		AnalysisTimeout:     time.Duration(analysisTimeout) * time.Second,
	}

	return cfg, nil
}
