package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/lumachat/luma-backend/internal/clients/openai"
	"github.com/lumachat/luma-backend/internal/clients/redis"
	"github.com/lumachat/luma-backend/internal/data/cache"
	"github.com/lumachat/luma-backend/internal/data/db"
	convrepos "github.com/lumachat/luma-backend/internal/data/repos/conversation"
	"github.com/lumachat/luma-backend/internal/data/stores"
	httpx "github.com/lumachat/luma-backend/internal/http"
	httpH "github.com/lumachat/luma-backend/internal/http/handlers"
	"github.com/lumachat/luma-backend/internal/platform/logger"
	"github.com/lumachat/luma-backend/internal/services"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	DB     *gorm.DB
	Server *httpx.Server

	dispatcher *services.MemoDispatcher
	cancel     context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	gdb := pg.DB()

	rdb, err := redis.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	cacheOpts := cache.Options{KeyPrefix: cfg.CacheKeyPrefix, TTL: cfg.CacheTTL}
	sessionCache := cache.NewSessionCache(rdb, log, cacheOpts)
	messageCache := cache.NewMessageCache(rdb, log, cacheOpts)
	memoCache := cache.NewMemoCache(rdb, log, cacheOpts)

	sessionRepo := convrepos.NewSessionRepo(gdb, log)
	messageRepo := convrepos.NewMessageRepo(gdb, log)
	memoRepo := convrepos.NewMemoRepo(gdb, log)

	dispatcher := services.NewMemoDispatcher(log, memoCache, memoRepo)

	sessionStore := stores.NewSessionStore(sessionCache, sessionRepo, log)
	messageStore := stores.NewMessageStore(messageCache, messageRepo, log)
	memoStore := stores.NewMemoStore(memoCache, memoRepo, dispatcher, log)

	generator, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init generation client: %w", err)
	}

	conv := services.NewConversationService(log, sessionStore, messageStore, generator)

	server := httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		ChatHandler:    httpH.NewChatHandler(conv),
		SessionHandler: httpH.NewSessionHandler(conv),
		MemoHandler:    httpH.NewMemoHandler(memoStore),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	return &App{
		Log:        log,
		Cfg:        cfg,
		DB:         gdb,
		Server:     server,
		dispatcher: dispatcher,
	}, nil
}

// Run starts the memo drain worker and serves HTTP until the process exits.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		if err := a.dispatcher.Start(ctx); err != nil && ctx.Err() == nil {
			a.Log.Error("memo dispatcher stopped", "error", err.Error())
		}
	}()

	a.Log.Info("HTTP server starting", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(a.Cfg.HTTPAddr)
}

func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.Log.Sync()
}
