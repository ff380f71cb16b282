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
	"path/filepath"
	"syscall"
	"time"

	"rezervacia/internal/api"
	"rezervacia/internal/config"
	"rezervacia/internal/database"
	"rezervacia/internal/domain"
	"rezervacia/internal/events"
	"rezervacia/internal/export"
	"rezervacia/internal/logging"
	"rezervacia/internal/metrics"
	"rezervacia/internal/repository"
	"rezervacia/internal/service"
	"rezervacia/internal/slots"
	"rezervacia/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}
	clock := service.RealClock{Loc: loc}

	redisClient, sessions := initSessions(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	provider, err := initSlots(cfg, db, clock, &logger)
	if err != nil {
		return err
	}

	deliveries := worker.NewDeliveryWorker(redisClient, worker.RetryPolicy{}, &logger)
	eventBus, amqp := initEvents(cfg, deliveries, &logger)
	if amqp != nil {
		defer func() { _ = amqp.Close() }()
	}
	subscribeNotifier(cfg, eventBus, deliveries, &logger)
	go deliveries.Start(ctx)

	wizardService := service.NewWizardService(db, provider, db, sessions, eventBus, clock, service.WizardConfig{
		WindowDays:       cfg.Booking.WindowDays,
		SubmitTimeout:    cfg.Booking.SubmitTimeout(),
		SubmitRateLimit:  cfg.Booking.SubmitRateLimit,
		SubmitRateWindow: cfg.Booking.SubmitRateWindow(),
	}, &logger)

	exporter := export.NewExporter(db, db, cfg.Exports.Path, &logger)
	httpServer := api.NewHTTPServer(cfg.API, wizardService, db, exporter, clock, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	for _, dir := range []string{filepath.Dir(cfg.Database.Path), cfg.Exports.Path} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("create directory")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("load catalog")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SeedCatalog(context.Background(), catalog.Services, catalog.Staff); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("seed catalog")
		return nil, err
	}
	return db, nil
}

// initSessions stores sessions in Redis when it is configured and falls back
// to process memory while Redis is unreachable.
func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionRepository) {
	ttl := cfg.Booking.SessionTTL()
	memory := repository.NewMemorySessionRepository(ttl)
	go memory.RunSweeper(ctx, time.Minute)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, sessions kept in memory")
		return nil, memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSessionRepository(primary, memory, logger)
}

func initSlots(cfg *config.Config, db *database.DB, clock domain.TimeProvider, logger *zerolog.Logger) (domain.SlotAvailabilityProvider, error) {
	rule, err := slots.NewRuleProvider(slots.RuleConfig{
		Step:         cfg.Booking.SlotStep(),
		WeekdayOpen:  cfg.Booking.WeekdayOpen,
		WeekdayClose: cfg.Booking.WeekdayClose,
		WeekendOpen:  cfg.Booking.WeekendOpen,
		WeekendClose: cfg.Booking.WeekendClose,
		Blocked:      cfg.Booking.BlockedTimes,
		Delay:        cfg.Booking.SlotDelay(),
	}, clock)
	if err != nil {
		logger.Error().Err(err).Msg("init slot rule")
		return nil, err
	}

	if !cfg.Booking.CheckReservations {
		return rule, nil
	}
	return slots.NewReservationAwareProvider(rule, db, logger), nil
}

func initEvents(cfg *config.Config, deliveries *worker.DeliveryWorker, logger *zerolog.Logger) (*events.EventBus, *events.AMQPForwarder) {
	bus := events.NewEventBus(logger)
	bus.SubscribeAll(events.AllEventTypes, events.LogHandler(logger))

	if cfg.Events.AMQPURL == "" {
		return bus, nil
	}

	forwarder, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, events stay in process")
		return bus, nil
	}
	deliveries.Register("amqp", forwarder.Handle)
	bus.SubscribeAll(events.AllEventTypes, deliveries.Handler("amqp"))
	logger.Info().Str("exchange", cfg.Events.Exchange).Msg("forwarding events to amqp")
	return bus, forwarder
}

// subscribeNotifier tells the salon's Telegram chats about bookings made on
// the web.
func subscribeNotifier(cfg *config.Config, bus *events.EventBus, deliveries *worker.DeliveryWorker, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.NotifyChatIDs) == 0 {
		return
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram unavailable, booking notifications disabled")
		return
	}

	tgService := service.NewTelegramService(botAPI)
	deliveries.Register("telegram", tgService.BookingNotifier(cfg.Telegram.NotifyChatIDs, logger))
	bus.Subscribe(events.EventBookingCreated, deliveries.Handler("telegram"))
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
