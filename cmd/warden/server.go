package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guildwarden/warden/auditlog"
	"github.com/guildwarden/warden/cachestore"
	"github.com/guildwarden/warden/countstore"
	"github.com/guildwarden/warden/discord"
	"github.com/guildwarden/warden/engine"
	"github.com/guildwarden/warden/internal/database"
	"github.com/guildwarden/warden/msgcache"
	"github.com/guildwarden/warden/settings"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	logger     *slog.Logger
	db         *gorm.DB
	rdb        *redis.Client
	session    *discordgo.Session
	bot        *discord.Bot
	engine     *engine.Engine
	messages   *msgcache.Cache
	settings   settings.Store
	sink       *auditlog.Sink
	adminToken string

	echo  *echo.Echo
	httpd *http.Server
}

type Config struct {
	Logger           *slog.Logger
	DiscordToken     string
	DatabaseURL      string
	MaxDBConnections int
	DBTracing        bool
	RedisURL         string
	Bind             string
	AdminToken       string
	Engine           engine.Config
}

const settingsCacheTTL = 30 * time.Minute

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	db, err := database.Open(config.DatabaseURL, config.MaxDBConnections)
	if err != nil {
		return nil, err
	}
	if config.DBTracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("enabling database tracing: %w", err)
		}
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		counters = countstore.NewRedisCountStore(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, settingsCacheTTL)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, settingsCacheTTL)
	}

	gormSettings, err := settings.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing settings store: %w", err)
	}
	store := &settings.CachedStore{
		Inner:  gormSettings,
		Cache:  cache,
		Logger: logger.With("component", "settings"),
	}

	bindings, err := auditlog.NewGormBindingStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing audit binding store: %w", err)
	}

	session, err := discord.NewSession(config.DiscordToken, logger)
	if err != nil {
		return nil, err
	}
	bot := discord.NewBot(session, logger)

	sink := auditlog.NewSink(bindings, bot, bot, logger, auditlog.DefaultSinkConfig())
	eng := engine.NewEngine(bot, store, counters, sink, logger.With("component", "engine"), config.Engine)

	s := &Server{
		logger:     logger,
		db:         db,
		rdb:        rdb,
		session:    session,
		bot:        bot,
		engine:     eng,
		messages:   eng.Messages,
		settings:   store,
		sink:       sink,
		adminToken: config.AdminToken,
	}
	s.setupEcho()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)
	s.httpd = &http.Server{
		Handler:        s,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.echo.ServeHTTP(rw, req)
}

// Connects to the gateway and serves the HTTP API, until the context is cancelled or an exit signal arrives.
func (s *Server) Run(ctx context.Context) error {
	removeHandlers := s.bot.RegisterHandlers(s.engine)
	defer removeHandlers()

	if err := s.session.Open(); err != nil {
		return fmt.Errorf("opening gateway session: %w", err)
	}
	s.logger.Info("gateway session open")

	s.logger.Info("starting server", "bind", s.httpd.Addr)
	go func() {
		if err := s.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	s.logger.Info("registering OS exit signal handler")
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exitSignals:
		s.logger.Info("received OS exit signal", "signal", sig)
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		s.logger.Error("shutdown error", "err", err)
	}
	s.logger.Info("graceful shutdown complete")
	return nil
}

// Stops event intake first, then drains background work (pending reverts, greetings, audit deliveries) before closing stores.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := s.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing gateway session: %w", err))
	}
	if err := s.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining engine: %w", err))
	}
	if err := s.httpd.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis client: %w", err))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
