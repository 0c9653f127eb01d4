package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/kirieshkistudios/park-backend/internal/api"
	"github.com/kirieshkistudios/park-backend/internal/api/handler"
	"github.com/kirieshkistudios/park-backend/internal/api/middleware"
	"github.com/kirieshkistudios/park-backend/internal/config"
	"github.com/kirieshkistudios/park-backend/internal/iot"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/repository/postgresql"
	"github.com/kirieshkistudios/park-backend/internal/service"
	"github.com/kirieshkistudios/park-backend/internal/storage"
)

// tempImageMaxAge is how old a temp upload must be before the sweeper removes it.
const tempImageMaxAge = 5 * time.Minute

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	gin.SetMode(gin.ReleaseMode)
	logging.Info().Str("port", cfg.ServerPort).Str("inference_backend", cfg.InferenceBackend).Msg("configuration loaded")

	// 2. Database
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := postgresql.Migrate(migrateCtx, db); err != nil {
		cancelMigrate()
		logging.Fatal().Err(err).Msg("could not apply schema")
	}
	cancelMigrate()
	logging.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	// 3. Repositories and image store
	userRepo := postgresql.NewPgUserRepository(db)
	lotRepo := postgresql.NewPgParkingLotRepository(db)
	cameraRepo := postgresql.NewPgCameraRepository(db)

	imageStore, err := storage.NewImageStore(cfg.ImageDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not prepare image directory")
	}

	// 4. AWS clients, only when something needs them
	needAWS := cfg.InferenceBackend == "rekognition" || cfg.ReportQueueURL != "" || cfg.IoTEndpoint != ""
	var awsCfg aws.Config
	if needAWS {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logging.Fatal().Err(err).Msg("could not load AWS SDK config")
		}
		logging.Info().Str("region", cfg.AWSRegion).Msg("AWS SDK config loaded")
	}

	// 5. Inference backend
	var forwarder service.InferenceForwarder
	switch cfg.InferenceBackend {
	case "rekognition":
		forwarder = service.NewRekognitionForwarder(rekognition.NewFromConfig(awsCfg), float32(cfg.RekognitionMinConfidence))
	default:
		if cfg.InferenceURL == "" {
			logging.Fatal().Msg("INFERENCE_URL is required for the http inference backend")
		}
		forwarder = service.NewHTTPInferenceClient(cfg.InferenceURL, cfg.InferenceTimeout)
	}
	forwarder = service.NewBreakerForwarder(forwarder, service.BreakerSettings{
		Name:                "inference_" + cfg.InferenceBackend,
		ConsecutiveFailures: uint32(cfg.BreakerFailures),
		OpenTimeout:         cfg.BreakerOpenTimeout,
	})

	// 6. Occupancy notifiers
	appCtx, cancelApp := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	webSocketManager := handler.NewWebSocketManager()
	wg.Add(1)
	go func() {
		defer wg.Done()
		webSocketManager.Start(appCtx)
	}()

	notifiers := service.MultiNotifier{webSocketManager}
	if cfg.IoTEndpoint != "" {
		endpoint := cfg.IoTEndpoint
		if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
			endpoint = "https://" + endpoint
		}
		iotClient := iotdataplane.NewFromConfig(awsCfg, func(o *iotdataplane.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
		notifiers = append(notifiers, iot.NewOccupancyPublisher(iotClient, cfg.IoTTopicPrefix))
		logging.Info().Str("endpoint", endpoint).Msg("IoT occupancy publishing enabled")
	}

	// 7. Services
	registry := service.NewCameraRegistry(cameraRepo, lotRepo)
	occupancyService := service.NewOccupancyService(lotRepo)
	intakeService := service.NewIntakeService(
		service.IntakeConfig{InboundSecret: cfg.InboundSecret, InferenceSecret: cfg.InferenceSecret},
		registry, occupancyService, forwarder, imageStore, notifiers,
	)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours)
	parkingService := service.NewParkingService(lotRepo, cameraRepo, registry)

	// 8. SQS report consumer
	if cfg.ReportQueueURL == "" {
		logging.Info().Msg("REPORT_QUEUE_URL not set, SQS report consumer disabled")
	} else {
		consumer := iot.NewSQSReportConsumer(sqs.NewFromConfig(awsCfg), cfg.ReportQueueURL, intakeService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(appCtx)
		}()
	}

	// 9. Temp image sweeper
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ImageSweepSchedule, func() {
		if _, err := imageStore.SweepTempFiles(tempImageMaxAge); err != nil {
			logging.Error().Err(err).Msg("temp image sweep failed")
		}
	})
	if err != nil {
		logging.Fatal().Err(err).Str("schedule", cfg.ImageSweepSchedule).Msg("invalid IMAGE_SWEEP_SCHEDULE")
	}
	scheduler.Start()

	// 10. HTTP server
	uploadLimiter := middleware.NewRateLimiter(cfg.UploadRatePerMin, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		uploadLimiter.Run(appCtx, time.Minute)
	}()
	router := api.SetupRouter(api.RouterDeps{
		AuthService:    authService,
		ParkingService: parkingService,
		Intake:         intakeService,
		Images:         imageStore,
		WSManager:      webSocketManager,
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		UploadLimiter:  uploadLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DB:             db,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("shutting down")

	cronCtx := scheduler.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server forced to shut down")
	}

	cancelApp()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.Warn().Msg("background workers did not stop in time")
	}
	<-cronCtx.Done()

	logging.Info().Msg("server stopped")
}
