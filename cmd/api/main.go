package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venuebook/internal/api"
	"venuebook/internal/config"
	"venuebook/internal/database"
	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/logging"
	"venuebook/internal/metrics"
	"venuebook/internal/models"
	"venuebook/internal/repository"
	"venuebook/internal/service"
	"venuebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink, sinkCloser, err := initSink(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	if sinkCloser != nil {
		defer sinkCloser.Close()
	}

	outbox := worker.NewOutboxWorker(db, sink, worker.Options{
		Retry:        worker.RetryFromConfig(cfg.Events.Outbox),
		PollInterval: cfg.Events.Outbox.PollInterval,
		BatchSize:    cfg.Events.Outbox.BatchSize,
		Redis:        redisClient,
	}, logging.Component(logger, "outbox"))
	go outbox.Start(ctx)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)
	}

	bus := events.NewEventBus()
	busLogger := logging.Component(logger, "events")
	bus.SubscribeAll(func(event *events.Event) error {
		busLogger.Debug().Str("event", event.Type).RawJSON("payload", event.Payload).Msg("Booking event committed")
		return nil
	})

	venueCache, quota := initCaches(cfg, redisClient, logger)

	bookings := service.NewBookingService(db, bus, outbox, logging.Component(logger, "bookings"))
	slots := service.NewSlotService(db, logging.Component(logger, "slots"))
	venues := service.NewVenueService(db, venueCache, logging.Component(logger, "venues"))

	services := api.Services{
		Venues:   venues,
		Slots:    slots,
		Bookings: bookings,
		Exporter: api.NewExporter(cfg.Exports, bookings, logging.Component(logger, "export")),
		Quota:    quota,
		Ready:    db.Ping,
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, api.NewReservationService(bookings, slots), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, services, logger)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, baseLogger, closer, nil
}

// loadVenues читает стартовый список площадок
func loadVenues(path string) ([]models.Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var venuesConfig struct {
		Venues []models.Venue `yaml:"venues"`
	}
	if err := yaml.Unmarshal(data, &venuesConfig); err != nil {
		return nil, err
	}
	return venuesConfig.Venues, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	seedPath := os.Getenv("VENUES_PATH")
	if seedPath == "" {
		seedPath = cfg.Booking.SeedPath
	}
	if seedPath == "" {
		return db, nil
	}

	venues, err := loadVenues(seedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("seed_path", seedPath).Msg("venue seed file not found, skipping")
			return db, nil
		}
		db.Close()
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read venues")
		return nil, err
	}

	inserted, err := db.SeedVenues(ctx, venues)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Int("inserted", inserted).Int("total", len(venues)).Msg("venues seeded")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initCaches returns the venue cache and booking quota store, falling back to memory without redis.
func initCaches(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.VenueCache, domain.RateLimiter) {
	memCache := repository.NewMemoryVenueCache(cfg.Booking.VenueCacheTTL)
	memLimiter := repository.NewMemoryRateLimiter()
	if redisClient == nil {
		return memCache, memLimiter
	}

	failoverLogger := logging.Component(logger, "cache")
	return repository.NewFailoverVenueCache(repository.NewRedisVenueCache(redisClient, cfg.Booking.VenueCacheTTL), memCache, failoverLogger),
		repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memLimiter, failoverLogger)
}

func initSink(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (events.Sink, io.Closer, error) {
	primary, closer, err := initPrimarySink(cfg, redisClient, logger)
	if err != nil {
		return nil, nil, err
	}

	fail := func(err error) (events.Sink, io.Closer, error) {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}

	sinks := events.MultiSink{primary}

	if sc := cfg.Events.Sheets; sc.Enabled {
		sheetsSink, err := events.NewSheetsSink(ctx, sc.CredentialsFile, sc.SpreadsheetID, sc.SheetName)
		if err != nil {
			logger.Error().Err(err).Msg("init google sheets sink")
			return fail(err)
		}
		if err := sheetsSink.TestConnection(ctx); err != nil {
			// Таблица может быть временно недоступна, outbox повторит доставку
			logger.Warn().Err(err).Str("spreadsheet_id", sc.SpreadsheetID).Msg("google sheets connection test failed")
		}
		sinks = append(sinks, sheetsSink)
	}

	if tc := cfg.Events.Telegram; tc.Enabled {
		notifier, err := events.NewTelegramNotifier(tc.Token, tc.ChatIDs)
		if err != nil {
			logger.Error().Err(err).Msg("init telegram notifier")
			return fail(err)
		}
		logger.Info().Str("bot", notifier.BotName()).Int("chats", len(tc.ChatIDs)).Msg("telegram notifier ready")
		sinks = append(sinks, notifier)
	}

	if len(sinks) == 1 {
		return primary, closer, nil
	}
	return sinks, closer, nil
}

func initPrimarySink(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (events.Sink, io.Closer, error) {
	switch cfg.Events.Sink {
	case "redis":
		if redisClient == nil {
			logger.Warn().Msg("events sink is redis but redis is unavailable, logging events instead")
			return events.LogSink{Logger: logging.Component(logger, "events")}, nil, nil
		}
		return events.NewRedisSink(redisClient, cfg.Events.RedisList, cfg.Events.RedisTopic), nil, nil
	case "amqp":
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQP.URL, cfg.Events.AMQP.Exchange)
		if err != nil {
			logger.Error().Err(err).Msg("connect amqp")
			return nil, nil, err
		}
		logger.Info().Str("exchange", cfg.Events.AMQP.Exchange).Msg("amqp connected")
		return publisher, publisher, nil
	default:
		return events.LogSink{Logger: logging.Component(logger, "events")}, nil, nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
