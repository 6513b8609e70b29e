// Package main is the entry point for the clip compilation pipeline server.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/briahnloo/content-generator-stitching/internal/config"
	"github.com/briahnloo/content-generator-stitching/internal/database"
	"github.com/briahnloo/content-generator-stitching/internal/metrics"
	"github.com/briahnloo/content-generator-stitching/internal/models"
	"github.com/briahnloo/content-generator-stitching/internal/router"
	"github.com/briahnloo/content-generator-stitching/internal/services/accounts"
	"github.com/briahnloo/content-generator-stitching/internal/services/classifier"
	"github.com/briahnloo/content-generator-stitching/internal/services/downloader"
	"github.com/briahnloo/content-generator-stitching/internal/services/grouper"
	"github.com/briahnloo/content-generator-stitching/internal/services/publisher"
	"github.com/briahnloo/content-generator-stitching/internal/services/renderer"
	"github.com/briahnloo/content-generator-stitching/internal/services/uploadrouter"
	"github.com/briahnloo/content-generator-stitching/internal/services/worker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 Clip Compilation Pipeline %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	log.Printf("📋 Config loaded: port=%s, workers=%d, gin_mode=%s", cfg.Port, cfg.WorkerCount, cfg.GinMode)
	log.Printf("🔧 yt-dlp: %s, ffmpeg: %s", cfg.YtDlpPath, cfg.FFmpegPath)

	os.Setenv("GIN_MODE", cfg.GinMode)

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✅ Database connected")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Step 3: Metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Step 4: Create Services
	dl := downloader.New(db, downloader.Config{
		YtDlpPath:   cfg.YtDlpPath,
		DownloadDir: cfg.DownloadDir,
		MaxRetries:  cfg.MaxDownloadRetries,
	})

	oracle := classifier.NewChatOracle(cfg.OracleAPIKey, cfg.OracleModel)
	if cfg.OracleAPIKey == "" {
		log.Println("⚠️  No oracle API key set (classification sweeps will fail — set ORACLE_API_KEY)")
	}
	cls := classifier.New(db, oracle, classifier.Thresholds{
		MinConfidence:         cfg.MinConfidence,
		MinCompilationScore:   cfg.MinCompilationScore,
		MinVisualIndependence: cfg.MinVisualIndependence,
	}).WithMetrics(collector)

	grp := grouper.New(db, grouper.Config{
		MinClips:              cfg.MinClipsPerCompilation,
		MaxClips:              cfg.MaxClipsPerCompilation,
		AutoApproveThreshold:  cfg.AutoApproveThreshold,
		MinCompilationScore:   cfg.MinCompilationScore,
		MinVisualIndependence: cfg.MinVisualIndependence,
		MegaEngagementWeight:  cfg.MegaEngagementWeight,
		MegaQualityWeight:     cfg.MegaQualityWeight,
		MegaDurationPenalty:   cfg.MegaDurationPenalty,
		MegaRecencyBonus:      cfg.MegaRecencyBonus,
		MegaTargetDuration:    cfg.MegaTargetDuration,
		MegaRecencyWindowDays: cfg.MegaRecencyWindowDays,
	}).WithMetrics(collector)

	rnd := renderer.New(db, renderer.Config{
		FFmpegPath:      cfg.FFmpegPath,
		OutputDir:       cfg.OutputDir,
		MusicDir:        cfg.MusicDir,
		Width:           cfg.VideoWidth,
		Height:          cfg.VideoHeight,
		FPS:             cfg.VideoFPS,
		MaxClipDuration: cfg.MaxClipDuration,
	}).WithMetrics(collector)

	am, err := accounts.New(db, cfg.CredentialsKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize account manager: %v", err)
	}

	ur := uploadrouter.New(db, uploadrouter.Config{
		CoolDown:   time.Duration(cfg.MinUploadIntervalMin) * time.Minute,
		MaxRetries: cfg.MaxUploadRetries,
	})

	uploaders := map[models.Platform]publisher.Uploader{
		models.PlatformYouTube: publisher.NewYouTubeUploader(),
		models.PlatformTikTok:  publisher.NewTikTokUploader(),
	}
	disp := publisher.NewDispatcher(ur, am, db, uploaders).WithMetrics(collector)

	// Step 5: Create and Start Worker Pool
	// One worker keeps pipeline stages strictly sequential; the stage
	// triggers arrive as separate jobs from the external scheduler.
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, worker.Stages{
		Downloader: dl,
		Classifier: cls,
		Grouper:    grp,
		Renderer:   rnd,
		Router:     ur,
		Dispatcher: disp,
	})
	wp.Start()
	defer wp.Stop()

	// Log admin API key status
	if cfg.AdminAPIKey != "" {
		log.Println("✅ Admin API key configured (API key creation protected)")
	} else {
		log.Println("⚠️  No admin API key set (API key creation is open — set ADMIN_API_KEY in production)")
	}

	// Step 6: Setup HTTP Router
	r := router.Setup(db, wp, am, grp, cfg, metrics.Handler(registry))

	// Step 7: Start the HTTP Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 Health check: http://localhost:%s/api/v1/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 8: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("👋 Server stopped. Goodbye!")
}
