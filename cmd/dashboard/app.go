package main

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/activitymap"
	"github.com/goliatone/go-dashboard-auth/cache"
	"github.com/goliatone/go-dashboard-auth/internal/config"
	"github.com/goliatone/go-dashboard-auth/internal/database"
	"github.com/goliatone/go-dashboard-auth/provider/local"
	"github.com/goliatone/go-dashboard-auth/repository"
)

// app holds the wired components of one process
type app struct {
	cfg    *config.Config
	logger *glog.BaseLogger

	db       *bun.DB
	redis    *redis.Client
	profiles *repository.ProfileRepository
	store    auth.ProfileStore
	provider *local.Provider
	client   *auth.Client
	sessions *auth.SessionManager
	routes   *auth.RouteResolver
	sink     auth.ActivitySink
}

func newApp(ctx context.Context, cfg *config.Config, logger *glog.BaseLogger) (*app, error) {
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		profiles: repository.NewProfileRepository(db),
	}
	a.store = a.profileStore()
	if rs, ok := a.store.(*cache.RedisStore); ok {
		if err := rs.Ping(ctx); err != nil {
			logger.GetLogger("cache").Warn("redis unreachable, profile reads go to the database", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	sink := activitymap.NewLogSink(logger.GetLogger("activity"))
	a.sink = sink

	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		signingKey = uuid.NewString()
		logger.GetLogger("auth").Warn("auth.signing_key is empty, using an ephemeral key; tokens will not survive a restart")
	}

	a.provider, err = local.New(db, local.Config{
		SigningKey:       []byte(signingKey),
		Issuer:           cfg.Auth.Issuer,
		TokenTTL:         cfg.Auth.TokenTTL,
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
		CoolDown:         cfg.Auth.CoolDown,
		ProvisionDelay:   cfg.Provider.ProvisionDelay,
		ProvisionFunc:    a.provisionTrigger,
	}, local.WithLogger(logger.GetLogger("provider")))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	provisioner := auth.NewProvisioner(a.store).
		WithWait(cfg.Session.ProvisionWait).
		WithLogger(logger.GetLogger("provisioning")).
		WithActivitySink(sink)

	a.client = auth.NewClient(a.provider, provisioner).
		WithLogger(logger.GetLogger("client")).
		WithActivitySink(sink)

	resolver := auth.NewProfileResolver(a.store, a.provider).
		WithLogger(logger.GetLogger("resolver")).
		WithActivitySink(sink)

	sessionLogger := logger.GetLogger("session")
	a.sessions = auth.NewSessionManager(a.provider, resolver,
		auth.WithSessionLogger(sessionLogger),
		auth.WithSessionActivitySink(sink),
		auth.WithSessionDebouncerOptions(auth.WithDebounceDelay(cfg.Session.Debounce)),
	)
	a.sessions.Subscribe(func(state auth.SessionState) {
		sessionLogger.Debug("session state changed", "state", state.String())
	})

	a.routes = auth.NewRouteResolver(auth.WithSignInPath(cfg.Session.SignInPath))

	return a, nil
}

func (a *app) profileStore() auth.ProfileStore {
	switch a.cfg.Cache.Kind {
	case config.CacheLRU:
		return cache.NewLRUStore(a.profiles, a.cfg.Cache.Size, a.cfg.Cache.TTL)
	case config.CacheRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		return cache.NewRedisStore(a.profiles, a.redis, a.cfg.Cache.TTL).
			WithLogger(a.logger.GetLogger("cache"))
	default:
		return a.profiles
	}
}

// provisionTrigger creates the profile row for a new account when nothing
// else has, the way the hosted database trigger does.
func (a *app) provisionTrigger(ctx context.Context, identity *auth.Identity) error {
	if _, err := a.store.Get(ctx, identity.ID); err == nil {
		return nil
	} else if !auth.IsProfileNotFound(err) {
		return err
	}
	return a.store.Upsert(ctx, auth.ProvisionedProfile(identity))
}

func (a *app) Close() error {
	if a.sessions != nil {
		_ = a.sessions.Close()
	}
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return a.db.Close()
}
