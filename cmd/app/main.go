// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dvsafe-service/internal/config"
	"dvsafe-service/internal/domain/ports/adapter"
	"dvsafe-service/internal/domain/ports/repository"
	tele "dvsafe-service/internal/infra/adapters/telegram"
	"dvsafe-service/internal/infra/adapters/delivery"
	"dvsafe-service/internal/infra/api"
	"dvsafe-service/internal/infra/db/memory"
	pg "dvsafe-service/internal/infra/db/postgres"
	"dvsafe-service/internal/infra/i18n"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/metrics"
	red "dvsafe-service/internal/infra/redis"
	"dvsafe-service/internal/infra/sched"
	"dvsafe-service/internal/infra/security"
	"dvsafe-service/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

const devEncryptionKey = "0123456789abcdef0123456789abcdef"

type storage struct {
	tm       repository.TransactionManager
	settings repository.SafetySettingsRepository
	chats    repository.SafeChatRepository
	panics   repository.PanicLogRepository
	cache    repository.SettingsCache
	close    func()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (memory-friendly defaults, unredacted logs)")
	tokenFor := flag.String("token-for", "", "print a 24h bearer token for this user id and exit (dev only)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	jwtSecret := cfg.Security.JWTSecret
	if jwtSecret == "" {
		logger.Warn().Msg("security.jwt_secret not set; using an insecure dev secret")
		jwtSecret = "dev-secret"
	}
	auth := api.NewAuthenticator(jwtSecret)
	if *tokenFor != "" {
		if !cfg.Runtime.Dev {
			log.Fatal("-token-for requires -dev")
		}
		tok, err := auth.Mint(*tokenFor, 24*time.Hour)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
	}

	// ---- Storage ----
	st, err := openStorage(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	defer st.close()

	// ---- Security ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("security.encryption_key must be 32 bytes")
		}
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = devEncryptionKey
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	pins := security.NewBcryptPinHasher(cfg.Security.PinCost)

	var throttle adapter.PinThrottle
	var locker red.Locker
	if redisClient != nil {
		throttle = red.NewPinThrottle(red.NewRateLimiter(redisClient), cfg.Pin.MaxAttempts, cfg.Pin.Window)
		locker = red.NewLocker(redisClient)
	}

	// ---- i18n ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("translator")
	}
	catalog, err := i18n.LoadResourceCatalog(i18n.LocalesFS)
	if err != nil {
		logger.Fatal().Err(err).Msg("resource catalog")
	}

	// ---- Delivery ----
	gateway, err := newGateway(cfg, tr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("delivery gateway")
	}

	// ---- Use cases ----
	chatUC := usecase.NewSafeChatUseCase(st.chats, st.settings, st.tm, encSvc, pins, throttle, logger)
	svc := api.Services{
		Settings:   usecase.NewSettingsUseCase(st.settings, st.tm, logger),
		Contacts:   usecase.NewContactUseCase(st.settings, st.tm, logger),
		Visibility: usecase.NewVisibilityUseCase(st.settings, st.tm, logger),
		Chats:      chatUC,
		Panic:      usecase.NewPanicUseCase(st.settings, st.panics, gateway, cfg.Panic.ContactTimeout, logger),
		Redactor:   usecase.NewNotificationRedactor(tr.NeutralNotifications()),
		Resources:  usecase.NewResourcesUseCase(catalog, st.cache, logger),
	}

	// ---- Background sweep ----
	sweeper := sched.NewMessageSweepWorker(cfg.Sweep.Interval, cfg.Sweep.LockTTL, chatUC, locker, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sweep worker stopped")
		}
	}()

	// ---- HTTP ----
	srv := api.NewServer(svc, auth, cfg.HTTP.RequestTimeout, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func openStorage(ctx context.Context, cfg *config.Config, redisClient *red.Client, logger *zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn().Msg("storage.driver=memory: data is lost on restart")
		store := memory.NewStore()
		return &storage{
			tm:       memory.NewTxManager(store),
			settings: memory.NewSettingsRepo(store),
			chats:    memory.NewSafeChatRepo(store),
			panics:   memory.NewPanicLogRepo(store),
			close:    func() {},
		}, nil
	}

	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, cfg.Database.URL); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	st := &storage{
		tm:     pg.NewTxManager(pool),
		chats:  pg.NewPostgresSafeChatRepo(pool),
		panics: pg.NewPostgresPanicLogRepo(pool),
		close:  pool.Close,
	}
	settings := pg.NewPostgresSettingsRepo(pool)
	if redisClient != nil {
		cached := pg.NewSettingsRepoCacheDecorator(settings, redisClient, cfg.Redis.TTL, logger)
		st.settings, st.cache = cached, cached
	} else {
		st.settings = settings
	}
	return st, nil
}

func newGateway(cfg *config.Config, tr *i18n.Translator, logger *zerolog.Logger) (adapter.DeliveryGateway, error) {
	if cfg.Panic.Gateway != "telegram" {
		return delivery.NewLogGateway(cfg.Runtime.Dev, logger), nil
	}
	var bot adapter.TelegramBotAdapter
	if cfg.Runtime.Dev && cfg.Telegram.Token == "dev" {
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		rb, err := tele.NewRealTelegramBotAdapter(&cfg.Telegram)
		if err != nil {
			return nil, err
		}
		bot = rb
	}
	return delivery.NewTelegramRelayGateway(bot, cfg.Telegram.RelayChatID, tr, cfg.Runtime.Dev, logger), nil
}
