package daemon

import (
	"context"
	"errors"
	"os"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/cache"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/config"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/lock"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/logging"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/outbox"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/rest"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/session"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/status"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	intsync "github.com/terverakaaga-gif/frontend-support24-sub002/internal/sync"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module composes the daemon: config, logging, session lock, cache,
// transport, and the sync engine, wired through the in-process bus.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCache,
			provideMirror,
			provideTokens,
			provideTransport,
			provideRESTClient,
			providePresenceTracker,
			providePipeline,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		// Missing or unreadable config falls back to defaults; the
		// daemon must come up on a fresh machine.
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore() *store.Store {
	return store.New()
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CachePath(p.SessionName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMirror(db *cache.DB, st *store.Store, b *bus.Bus, logger *zap.Logger) *cache.Mirror {
	return cache.NewMirror(db, st, b, logger)
}

func provideTokens(p Params) session.TokenSource {
	return session.FileToken{Path: session.TokenPath(p.SessionName)}
}

func provideTransport(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *transport.Manager {
	backoff := transport.Backoff{
		Base:        cfg.ReconnectBase(),
		Max:         cfg.ReconnectMax(),
		MaxAttempts: cfg.ReconnectMaxAttempts,
	}
	return transport.NewManager(cfg.ServerURL, b, machine, backoff, logger)
}

func provideRESTClient(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.NewClient(cfg.ServerURL, logger)
}

func providePresenceTracker(st *store.Store, b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(st, b, logger)
}

func providePipeline(cfg *config.Config, st *store.Store, mgr *transport.Manager, b *bus.Bus, logger *zap.Logger) *outbox.Pipeline {
	return outbox.NewPipeline(st, mgr, b, cfg.AckTimeout(), logger)
}

func provideEngine(st *store.Store, b *bus.Bus, api *rest.Client, mgr *transport.Manager, pipe *outbox.Pipeline, tracker *presence.Tracker, tokens session.TokenSource, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(intsync.Params{
		Store:    st,
		Bus:      b,
		API:      api,
		Realtime: mgr,
		Pipeline: pipe,
		Tracker:  tracker,
		Tokens:   tokens,
		Logger:   logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *cache.DB, mirror *cache.Mirror, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := mirror.WarmStart(); err != nil {
				logger.Warn("warm start failed", zap.Error(err))
			}
			mirror.Start()

			// Connect in the background so a dead network does not
			// block startup; cached history is already available.
			go func() {
				if err := engine.Connect(context.Background()); err != nil {
					if errors.Is(err, os.ErrNotExist) {
						logger.Info("no token file yet, waiting for login")
						return
					}
					logger.Error("connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Close()
			mirror.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
