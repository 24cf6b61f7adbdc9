// Package app wires configuration, storage, billing and the HTTP server into a running gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mono-ai/aiproxy/internal/access"
	"github.com/mono-ai/aiproxy/internal/balance"
	"github.com/mono-ai/aiproxy/internal/channel"
	"github.com/mono-ai/aiproxy/internal/config"
	"github.com/mono-ai/aiproxy/internal/db"
	relayhttp "github.com/mono-ai/aiproxy/internal/http"
	"github.com/mono-ai/aiproxy/internal/logging"
	"github.com/mono-ai/aiproxy/internal/relay"
	"github.com/mono-ai/aiproxy/internal/security"
	"github.com/mono-ai/aiproxy/internal/settings"
	"github.com/mono-ai/aiproxy/internal/store"
	"github.com/mono-ai/aiproxy/internal/usage"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close(conn)
	}()
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the relay server and blocks until ctx is canceled or the listener fails.
// On shutdown the HTTP server stops first, then queued consumptions are drained.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close(conn)
	}()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	directory := store.New(conn)
	holder := settings.NewHolder(settings.Defaults())
	if errRefresh := settings.Refresh(ctx, conn, holder, settings.Defaults()); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: initial options load failed, using defaults")
	}

	channels := channel.NewSnapshotStore(directory, cfg.Refresh.Channels)
	if errRefresh := channels.Refresh(ctx); errRefresh != nil {
		return fmt.Errorf("app: load channels: %w", errRefresh)
	}

	provider, closeProvider, err := buildBalanceProvider(cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	pool := usage.NewPool(cfg.Billing.Workers, cfg.Billing.QueueSize)
	recorder := usage.NewRecorder(usage.NewGormLogSink(conn, holder), pool)
	handler := relayhttp.NewRelayHandler(
		directory,
		channels,
		relay.NewFailover(relay.NewExecutor()),
		provider,
		recorder,
		holder,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logging.RequestID(), logging.GinLogger(), gin.Recovery())
	relayhttp.RegisterRoutes(engine, access.NewAuthenticator(directory), handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer stopLoops()
	channels.Start(loopCtx)
	settings.StartReloader(loopCtx, conn, holder, settings.Defaults(), cfg.Refresh.Options)
	startRetention(loopCtx, conn, holder)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("aiproxy listening on %s (balance=%s)", cfg.Server.Addr, cfg.Balance.Mode)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Warn("app: http shutdown incomplete")
		}
		stopLoops()
		drainConsumption(pool, cfg.Billing.DrainTimeout)
		return nil
	})
	return group.Wait()
}

// drainConsumption flushes queued billing work and reports how many consumptions were lost.
func drainConsumption(pool *usage.Pool, timeout time.Duration) int64 {
	if errDrain := pool.Drain(timeout); errDrain != nil {
		log.WithError(errDrain).WithField("dropped", pool.Dropped()).Error("app: consumption drain incomplete")
	}
	return pool.Dropped()
}

func startRetention(ctx context.Context, conn *gorm.DB, holder *settings.Holder) {
	if cleaner := usage.NewLogRetentionCleaner(conn, holder); cleaner != nil {
		cleaner.Start(ctx)
	}
}

// buildBalanceProvider returns the configured provider and a release func for its resources.
func buildBalanceProvider(cfg config.Config) (balance.Provider, func(), error) {
	noop := func() {}
	if cfg.Balance.Mode != config.BalanceModeRemote {
		log.Info("app: using mock balance provider")
		return balance.NewMockProvider(), noop, nil
	}

	tokens, errToken := security.NewAccountTokenSource(cfg.Balance.JWTKey, cfg.Balance.TokenExpiry)
	if errToken != nil {
		return nil, noop, fmt.Errorf("app: sign account token: %w", errToken)
	}
	client := balance.NewAccountClient(cfg.Balance.AccountURL, tokens, &http.Client{Timeout: cfg.Balance.HTTPTimeout})

	var (
		cache   balance.Cache = balance.NewMemoryCache()
		release               = noop
	)
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = balance.NewRedisCache(rdb, balance.WithKeyPrefix(cfg.Redis.KeyPrefix))
		release = func() {
			_ = rdb.Close()
		}
		log.Infof("app: balance cache on redis %s", cfg.Redis.Addr)
	}

	provider := balance.NewRemoteProvider(client, balance.RemoteConfig{
		Cache:                     cache,
		CacheTTL:                  cfg.Balance.CacheTTL,
		CacheJitter:               cfg.Balance.CacheJitter,
		CheckRealName:             cfg.Balance.CheckRealName,
		NoRealNameUsedAmountLimit: cfg.Balance.NoRealNameUsedAmountLimit,
	})
	return provider, release, nil
}
