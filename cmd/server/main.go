package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"threpsi/internal/archive"
	"threpsi/internal/config"
	apphttp "threpsi/internal/http"
	"threpsi/internal/repository"
	"threpsi/internal/repository/postgres"
	"threpsi/internal/repository/sqlite"
	"threpsi/internal/service"
	"threpsi/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, appointmentRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer closeStore()

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := appointmentRepo.Init(ctx); err != nil {
		logger.Fatalf("init appointment repository: %v", err)
	}

	userService := service.NewUserService(userRepo)
	appointmentService := service.NewAppointmentService(appointmentRepo)
	medicine := service.NewMedicineLookup(cfg.Medicine.SearchURL)

	limiter := apphttp.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	if limiter != nil {
		go limiter.Run(ctx)
		logger.Infof("rate limiting login/register at %.2f req/s (burst %d)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	if cfg.Archive.Bucket != "" {
		storageSvc, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		exporter := archive.NewExporter(archive.Config{
			Bucket:    cfg.Archive.Bucket,
			KeyPrefix: cfg.Archive.KeyPrefix,
			Interval:  cfg.Archive.Interval,
			Keep:      cfg.Archive.Keep,
			Logger:    logger,
		}, appointmentService, storageSvc)
		go exporter.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := apphttp.NewRouter(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatalf("setup router: %v", err)
	}
	handler := apphttp.NewHandler(userService, appointmentService, medicine, limiter, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func openStore(ctx context.Context, cfg config.Config) (repository.UserRepository, repository.AppointmentRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewUserRepository(pool), postgres.NewAppointmentRepository(pool), pool.Close, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlite.NewUserRepository(db), sqlite.NewAppointmentRepository(db), func() { db.Close() }, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Archive.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving appointments to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)
	return storage.NewS3Service(client), nil
}
