package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gogpu/gg"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/client"
	"github.com/listingcast/api/internal/config"
	"github.com/listingcast/api/internal/export"
	"github.com/listingcast/api/internal/export/gif"
	"github.com/listingcast/api/internal/export/video"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/handler"
	"github.com/listingcast/api/internal/middleware"
	"github.com/listingcast/api/internal/render"
	"github.com/listingcast/api/internal/service"
	ws "github.com/listingcast/api/internal/websocket"
	"github.com/listingcast/api/internal/worker"
)

const exportTaskTimeout = 15 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Server.LogLevel),
	})))

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// R2 is optional; exports fail at upload without it
	var r2Client client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			r2Client = r2
		}
	} else {
		log.Println("Info: R2 storage not configured")
	}

	ffmpeg := client.NewFFmpegClient(&cfg.FFmpeg)
	if !ffmpeg.Available() {
		log.Println("Info: ffmpeg not found, MP4 falls back to MJPEG and live capture is disabled")
	}

	loader := assets.NewLoader(client.NewAssetClient(&cfg.Render), assets.NewRedisCache(redisClient), assets.Options{
		Origin:         cfg.Render.Origin,
		AllowedOrigins: cfg.Render.AllowedOrigins,
		CacheTTL:       time.Duration(cfg.Render.AssetCacheTTL) * time.Second,
		FontsDir:       cfg.Render.FontsDir,
		WatermarkRef:   cfg.Render.WatermarkURL,
	})
	renderer := render.NewRenderer(cfg.Render.Locale)

	// Video jobs share one encoder across all dispatchers.
	slot := video.NewSlot(video.NewEncoderFactory(ffmpeg))
	live := &video.LiveCapture{
		Display:  video.HeadlessDisplay{},
		Source:   video.HeadlessSource{},
		Recorder: &video.FFmpegRecorder{FFmpeg: ffmpeg},
	}

	concurrency := max(cfg.Export.MaxConcurrent, 1)
	hold := time.Duration(cfg.Export.StillSecondsPerFrame) * time.Second
	dispatchers := make([]*export.Dispatcher, concurrency)
	for i := range dispatchers {
		dispatchers[i] = &export.Dispatcher{
			Assets:        loader,
			Renderer:      renderer,
			GIF:           gif.NewPipeline(),
			Clips:         ffmpeg,
			Slot:          slot,
			Live:          live,
			StillHold:     hold,
			SlideDuration: hold,
		}
	}
	pool := worker.NewPool(dispatchers...)
	defer pool.Close()

	exportService := service.NewExportService(redisClient, asynqClient, inspector, exportTaskTimeout)
	previewService := service.NewPreviewService(loader, renderer)
	defer previewService.Close()
	uploadService := service.NewUploadService(r2Client)

	routes := &handler.Routes{
		Export:  handler.NewExportHandler(exportService, validate),
		Preview: handler.NewPreviewHandler(previewService, validate),
		Upload:  handler.NewUploadHandler(uploadService, validate),
		Hub:     hub,
		Limiter: middleware.NewRateLimiter(redisClient),
		Limits:  cfg.RateLimit,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    110 * 1024 * 1024, // videos up to 100MB plus multipart overhead
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		hctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		r2OK := r2Client != nil && r2Client.HealthCheck(hctx) == nil
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  redisClient.Ping(hctx).Err() == nil,
				"r2":     r2OK,
				"ffmpeg": ffmpeg.Available(),
				"probe":  ffmpeg.CanProbe(),
			},
		})
	})

	routes.Register(app)

	srv := newWorkerServer(cfg, redisOpt)
	exportWorker := worker.NewExportWorker(exportService, pool, r2Client, hub)
	exportWorker.ResultTTL = time.Duration(cfg.Export.ResultTTLHours) * time.Hour
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(service.TaskTypeExport, exportWorker.ProcessTask)
		if err := srv.Run(mux); err != nil {
			log.Printf("Asynq worker error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		srv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: max(cfg.Export.MaxConcurrent, 1),
		Queues: map[string]int{
			service.ExportQueue: 1,
		},
		LogLevel: asynqLevel(cfg.Server.LogLevel),
		// A busy encoder clears quickly; everything else backs off.
		RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
			var busy *exporterr.EncoderBusyError
			if errors.As(err, &busy) {
				return 5 * time.Second
			}
			return asynq.DefaultRetryDelayFunc(n, err, t)
		},
		ShutdownTimeout: 30 * time.Second,
	})
}

func asynqLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	}
	return asynq.InfoLevel
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
