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

	"rezervacia/internal/bot"
	"rezervacia/internal/config"
	"rezervacia/internal/database"
	"rezervacia/internal/domain"
	"rezervacia/internal/events"
	"rezervacia/internal/logging"
	"rezervacia/internal/metrics"
	"rezervacia/internal/repository"
	"rezervacia/internal/service"
	"rezervacia/internal/slots"
	"rezervacia/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("Zadajte token bota v config.yaml")
		return os.ErrInvalid
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
		return fmt.Errorf("init slot rule: %w", err)
	}
	var provider domain.SlotAvailabilityProvider = rule
	if cfg.Booking.CheckReservations {
		provider = slots.NewReservationAwareProvider(rule, db, &logger)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug
	logger.Info().Str("username", botAPI.Self.UserName).Msg("authorized on account")
	tgService := service.NewTelegramService(botAPI)

	deliveries := worker.NewDeliveryWorker(redisClient, worker.RetryPolicy{}, &logger)
	eventBus := events.NewEventBus(&logger)
	eventBus.SubscribeAll(events.AllEventTypes, events.LogHandler(&logger))
	if len(cfg.Telegram.NotifyChatIDs) > 0 {
		deliveries.Register("telegram", tgService.BookingNotifier(cfg.Telegram.NotifyChatIDs, &logger))
		eventBus.Subscribe(events.EventBookingCreated, deliveries.Handler("telegram"))
	}
	if cfg.Events.AMQPURL != "" {
		forwarder, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, &logger)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp unavailable, events stay in process")
		} else {
			deliveries.Register("amqp", forwarder.Handle)
			eventBus.SubscribeAll(events.AllEventTypes, deliveries.Handler("amqp"))
			defer func() { _ = forwarder.Close() }()
		}
	}
	go deliveries.Start(ctx)

	wizardService := service.NewWizardService(db, provider, db, sessions, eventBus, clock, service.WizardConfig{
		WindowDays:       cfg.Booking.WindowDays,
		SubmitTimeout:    cfg.Booking.SubmitTimeout(),
		SubmitRateLimit:  cfg.Booking.SubmitRateLimit,
		SubmitRateWindow: cfg.Booking.SubmitRateWindow(),
	}, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	botMetrics := bot.NewMetrics(prometheus.DefaultRegisterer)
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	telegramBot := bot.NewBot(tgService, wizardService, sessions, service.ChannelTelegram, botMetrics, logging.Component(&logger, "bot"))
	go func() {
		<-ctx.Done()
		telegramBot.Stop()
	}()

	logger.Info().Msg("bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("shutdown complete")
	return nil
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
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
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
		logger.Error().Err(err).Msg("init database")
		return nil, err
	}

	if err := db.SeedCatalog(context.Background(), catalog.Services, catalog.Staff); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("seed catalog")
		return nil, err
	}
	return db, nil
}

func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionRepository) {
	ttl := cfg.Booking.SessionTTL()
	memory := repository.NewMemorySessionRepository(ttl)
	go memory.RunSweeper(ctx, time.Minute)

	if cfg.Redis.Address == "" {
		return nil, memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable")
	}

	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSessionRepository(primary, memory, logger)
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
