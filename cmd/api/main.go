package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/handlers"
	"github.com/Ramsey-B/clover/internal/repositories/auditlog"
	"github.com/Ramsey-B/clover/internal/repositories/candidate"
	"github.com/Ramsey-B/clover/internal/repositories/checkpoint"
	"github.com/Ramsey-B/clover/internal/repositories/company"
	"github.com/Ramsey-B/clover/internal/repositories/matchindex"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/janitor"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/scanner"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const version = "1.0.0"

// dependency adapts closures to the startup orchestrator.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceShutdown, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLPEndpoint)
	if err != nil {
		logger.WithError(err).Error("Failed to set up tracing")
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	var (
		db          database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			db, err = database.Connect(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				User:            cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			return err
		},
		stop: func(ctx context.Context) error { return db.Close() },
	})
	boot.AddDependency(&dependency{
		name:      "migrations",
		dependsOn: []string{"database"},
		start: func(ctx context.Context) error {
			driver, err := postgres.WithInstance(db.SQLX().DB, &postgres.Config{})
			if err != nil {
				return err
			}
			ms := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return ms.Migrate(cfg.DatabaseName, driver)
		},
	})
	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			redisClient = redis.NewClient(redis.Config{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return redisClient.Ping(ctx)
		},
		stop: func(ctx context.Context) error { return redisClient.Close() },
	})
	boot.AddDependency(&dependency{
		name: "kafka-producer",
		start: func(ctx context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		stop: func(ctx context.Context) error { return producer.Close() },
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		return
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Dependency shutdown failed")
		}
	}()

	// Repositories
	companies := company.New(db, logger)
	candidates := candidate.New(db, logger)
	index := matchindex.New(db, logger)
	checkpoints := checkpoint.New(db, logger)
	audit := auditlog.New(db, logger)

	// Core services
	emitter := events.NewEmitter(producer, logger)
	scorer := matching.NewScorer(cfg.DefaultCountryCode)
	policy := matching.NewPolicy(matching.PolicyConfigFrom(cfg))
	merger := merging.NewEngine(companies, candidates, audit, index, emitter, logger)
	detector := matching.NewDetector(companies, index, candidates, merger, emitter, scorer, policy, cfg.MaxPoolSize, cfg.DetectorWorkerCount, logger)
	scan := scanner.New(db, companies, index, candidates, checkpoints, emitter, scorer, policy, scanner.Config{
		BatchSize:    cfg.ScanBatchSize,
		WorkerCount:  cfg.ScanWorkerCount,
		BatchTimeout: cfg.ScanBatchTimeout,
		MaxPoolSize:  cfg.MaxPoolSize,
	}, logger)
	cleaner := janitor.New(candidates, janitor.Config{
		RetentionDays:   cfg.CandidateRetentionDays,
		DeleteConfirmed: cfg.CleanupDeleteConfirmed,
	}, logger)

	// Scheduled jobs behind a distributed lock
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		locker := redis.NewLocker(redisClient, "clover:")
		sched = scheduler.NewScheduler([]scheduler.Job{
			{
				Name:     "duplicate-scan",
				Interval: cfg.ScanInterval,
				Run: func(ctx context.Context) error {
					_, err := scan.Run(ctx)
					return err
				},
			},
			{
				Name:     "candidate-cleanup",
				Interval: cfg.JanitorInterval,
				Run: func(ctx context.Context) error {
					_, err := cleaner.Run(ctx)
					return err
				},
			},
		}, locker, scheduler.Config{
			PollInterval: cfg.SchedulerPollInterval,
			LockTTL:      cfg.SchedulerLockTTL,
		}, logger)

		if err := sched.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start scheduler")
			return
		}
	}

	// Ingestion consumer feeding the detector
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, func(ctx context.Context, event *kafka.CompanyEvent) error {
			switch event.EventType {
			case "company.created", "company.updated":
				return detector.ProcessCompany(ctx, event.CompanyID)
			default:
				logger.WithContext(ctx).WithField("event_type", event.EventType).Debug("Ignoring company event")
				return nil
			}
		})

		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start Kafka consumer")
			return
		}
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(db, redisClient, version)
	e.GET("/health", checker.HealthHandler)
	e.GET("/health/live", checker.LivenessHandler)
	e.GET("/health/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	duplicates := handlers.NewDuplicatesHandler(candidates, companies, audit, merger, scan, logger)
	duplicates.Register(e.Group("/api/v1/duplicates"))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting %s on %s", cfg.AppName, addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	checker.SetReady(true)

	<-ctx.Done()
	logger.Info("Shutting down...")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("Kafka consumer shutdown failed")
		}
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Scheduler shutdown failed")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	logger.Info("Shutdown complete")
}
