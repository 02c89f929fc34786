package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oidanice/tscribe/internal/cleanup"
	"github.com/oidanice/tscribe/internal/config"
	"github.com/oidanice/tscribe/internal/download"
	"github.com/oidanice/tscribe/internal/store"
	"github.com/oidanice/tscribe/internal/subtitles"
	"github.com/oidanice/tscribe/internal/transcribe"
	"github.com/oidanice/tscribe/internal/worker"
	"github.com/oidanice/tscribe/shared/logger"
	"github.com/oidanice/tscribe/shared/postgresql"
	"github.com/oidanice/tscribe/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	jobStore := store.New(dbClient.GetDB(), appLogger.Logger)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = jobStore.EnsureSchema(startupCtx)
	if err != nil {
		startupCancel()
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// A non-terminal job with no live executor is leftover from a crash;
	// fail those before taking on new work.
	err = worker.RecoverInterrupted(startupCtx, appLogger.Logger, jobStore)
	startupCancel()
	if err != nil {
		return err
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	engine, err := initEngine(cfg, appLogger.Logger)
	if err != nil {
		return err
	}

	workerInstance := worker.New(&worker.Config{
		Logger:       appLogger.Logger,
		Store:        jobStore,
		RabbitClient: rabbitClient,
		Fetcher: subtitles.NewFetcher(
			cfg.Pipeline.YtDlpPath,
			cfg.Pipeline.SubtitleLangs,
			appLogger.Logger,
		),
		Downloader:    download.New(cfg.Pipeline.YtDlpPath, cfg.Pipeline.DataDir, appLogger.Logger),
		Engine:        engine,
		DataDir:       cfg.Pipeline.DataDir,
		Concurrency:   cfg.Worker.Concurrency,
		JobTimeout:    cfg.Worker.JobTimeout,
		ShutdownGrace: cfg.Worker.ShutdownTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic sweep for artifacts that immediate cleanup missed
	sweeper := cleanup.NewSweeper(
		cfg.Pipeline.DataDir,
		cfg.Pipeline.CleanupMaxAge,
		cfg.Pipeline.CleanupInterval,
		appLogger.Logger,
	)
	go sweeper.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	cleanupResources := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		// A lost broker connection surfaces here; exit so the process
		// supervisor restarts the worker with a fresh connection.
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		cleanupResources()
		return err
	}

	cancel()
	workerInstance.Stop()
	cleanupResources()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initEngine selects the transcription backend
func initEngine(cfg *config.Config, logger *slog.Logger) (transcribe.Engine, error) {
	switch cfg.Pipeline.WhisperProvider {
	case "openai":
		return transcribe.NewOpenAI(cfg.Pipeline.OpenAIAPIKey, logger), nil
	case "local":
		return transcribe.NewLocal(cfg.Pipeline.WhisperPath, cfg.Pipeline.WhisperModelPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown whisper provider %q", cfg.Pipeline.WhisperProvider)
	}
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
