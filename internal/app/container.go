package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/audit"
	"github.com/kapu/untranslate-go/internal/bridge"
	"github.com/kapu/untranslate-go/internal/config"
	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/resolve"
	"github.com/kapu/untranslate-go/internal/restore"
	"github.com/kapu/untranslate-go/internal/session"
)

// Container bundles the assembled service graph. Heavy-weight initialization
// (API clients, Redis, Postgres) happens in Build so the runtime components
// stay focused on orchestration.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Factory  *session.Factory
	Sessions *session.Manager
	Bridge   *bridge.Server

	closers []func()
}

// Close releases everything Build opened, in reverse order. Safe to call
// after a partial Build failure has already rolled back.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles the resolver stack, the audit journal and the session
// factory, plus the bridge server when enabled. Bridge is nil when the
// bridge is disabled; sessions can still be created directly through the
// factory (embedded and test use).
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Official API is a capability, not a requirement: a failed client
	// build degrades to fallback-only resolution instead of failing startup.
	var official resolve.Official
	if cfg.YouTube.EnableOfficial && cfg.YouTube.HasCredential() {
		oc, ocErr := resolve.NewOfficialClient(ctx, resolve.Credentials{
			APIKey:     cfg.YouTube.APIKey,
			OAuthToken: cfg.YouTube.OAuthToken,
		}, logger)
		if ocErr != nil {
			logger.Warn("Official API client unavailable, internal API only", zap.Error(ocErr))
		} else {
			official = oc
			logger.Info("Official API enabled",
				zap.Bool("api_key", cfg.YouTube.APIKey != ""),
				zap.Bool("oauth", cfg.YouTube.OAuthToken != ""))
		}
	}

	fallback := resolve.NewInnertubeClient(logger)
	scraper := resolve.NewScraperClient(logger)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, constants.RedisConfig.ReadyTimeout)
		pingErr := rdb.Ping(pingCtx).Err()
		pingCancel()
		if pingErr != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", pingErr)
		}
		closers = append(closers, func() {
			_ = rdb.Close()
		})
		logger.Info("Channel lookaside enabled",
			zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
	}
	lookaside := resolve.NewChannelLookaside(rdb, logger)

	resolver := resolve.NewResolver(official, fallback, scraper, lookaside, logger)

	var journal audit.Journal = audit.NopJournal{}
	if cfg.Postgres.Enabled {
		pj, pjErr := audit.NewPostgresJournal(cfg.Postgres, logger)
		if pjErr != nil {
			return nil, fmt.Errorf("failed to create audit journal: %w", pjErr)
		}
		journal = pj
		closers = append(closers, func() {
			_ = pj.Close()
		})
	}

	factory := &session.Factory{
		Source:    resolver,
		Selectors: restore.DefaultSelectors(),
		Settings: restore.Settings{
			Titles:       cfg.Restore.Titles,
			Descriptions: cfg.Restore.Descriptions,
		},
		GuardMode: cfg.Restore.GuardMode,
		Journal:   journal,
		Logger:    logger,
	}
	manager := session.NewManager(logger)

	var server *bridge.Server
	if cfg.Bridge.Enabled {
		server = bridge.NewServer(cfg.Bridge.Addr, factory, manager, logger)
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Factory:  factory,
		Sessions: manager,
		Bridge:   server,
		closers:  closers,
	}, nil
}
