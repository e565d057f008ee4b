package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/vitalpath/health-analytics-backend/internal/api/rest"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/cache"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/config"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/events"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/repository"
	"github.com/vitalpath/health-analytics-backend/internal/infrastructure/telemetry"
	"github.com/vitalpath/health-analytics-backend/internal/metrics"
	"github.com/vitalpath/health-analytics-backend/internal/service/insights"
	"github.com/vitalpath/health-analytics-backend/internal/service/predictor"
	"github.com/vitalpath/health-analytics-backend/internal/service/risk"
	"github.com/vitalpath/health-analytics-backend/internal/service/trends"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to configuration file")
		migrateOnly = flag.Bool("migrate", false, "run database migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if *migrateOnly {
		if err := runMigrations(cfg.Database.URL); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations completed")
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = cfg.Version
	telCfg.Environment = cfg.Environment
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.SamplingRate = cfg.Telemetry.SampleRate

	provider, err := telemetry.Initialize(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	trendRepo, assessRepo, predRepo, dbClose, err := buildRepositories(cfg, logger)
	if err != nil {
		return err
	}
	if dbClose != nil {
		defer dbClose()
	}

	var c cache.Cache
	if cfg.Redis.URL != "" {
		c, err = cache.NewRedisCache(&cache.RedisConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	} else {
		logger.Info("redis not configured, assessment reuse falls back to the repository")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		if err != nil {
			return fmt.Errorf("initializing kafka publisher: %w", err)
		}
		defer kp.Close()
		publisher = kp
	} else {
		logger.Info("kafka not configured, notifications are discarded")
	}

	policy := risk.DefaultPolicy()
	if weights := cfg.Analytics.CategoryWeights(); len(weights) > 0 {
		policy.Weights = weights
	}
	if cfg.Analytics.RiskReuseWindow > 0 {
		policy.ReuseWindow = cfg.Analytics.RiskReuseWindow
	}

	trendSvc := trends.NewService(trendRepo, cfg.Analytics, registry, logger)
	riskSvc := risk.NewService(assessRepo, trendRepo, trendSvc, c, publisher, registry, policy, logger)
	predSvc := predictor.NewService(predRepo, trendRepo, riskSvc, c, publisher, registry, cfg.Analytics.PredictionReuseWindow, logger)
	insightSvc := insights.NewService(trendRepo, assessRepo, logger)

	handler := rest.NewHandler(trendSvc, riskSvc, predSvc, insightSvc, logger)
	server := rest.NewServer(cfg.Server, handler, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRepositories selects postgres persistence when a database URL is
// configured and falls back to in-memory stores otherwise.
func buildRepositories(cfg *config.Config, logger *zap.Logger) (trends.Repository, risk.Repository, predictor.Repository, func() error, error) {
	if cfg.Database.URL == "" {
		logger.Info("database not configured, using in-memory repositories")
		return repository.NewMemoryTrendRepository(),
			repository.NewMemoryAssessmentRepository(),
			repository.NewMemoryPredictionRepository(),
			nil, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return repository.NewTrendRepository(db),
		repository.NewAssessmentRepository(db),
		repository.NewPredictionRepository(db),
		db.Close, nil
}

func runMigrations(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database url is required for migrations")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "pgx", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
