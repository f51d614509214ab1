package messpass

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/internal/audit"
	"github.com/MrEthical07/messpass/internal/rate"
	"github.com/MrEthical07/messpass/jwt"
	"github.com/MrEthical07/messpass/kv"
	"github.com/MrEthical07/messpass/lifecycle"
	"github.com/MrEthical07/messpass/password"
	"github.com/MrEthical07/messpass/provider"
	"github.com/MrEthical07/messpass/session"
	"github.com/MrEthical07/messpass/stores"
)

// Builder assembles an App. A Builder can build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	kv        kv.Store
	provider  provider.Provider
	directory provider.Directory
	backend   backend.API
	logger    logrus.FieldLogger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the redis KV backend and the
// built-in provider.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKV overrides Config.Storage with a ready store. Encryption from
// Config.Storage.EncryptionKey is still applied on top.
func (b *Builder) WithKV(store kv.Store) *Builder {
	b.kv = store
	return b
}

// WithProvider replaces the built-in provider.
func (b *Builder) WithProvider(p provider.Provider) *Builder {
	b.provider = p
	return b
}

// WithDirectory sets the account directory of the built-in provider.
// Defaults to an empty in-memory directory.
func (b *Builder) WithDirectory(d provider.Directory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithBackend(api backend.API) *Builder {
	b.backend = api
	return b
}

func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for expiry and membership checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the App. No I/O happens
// until App.Start.
func (b *Builder) Build() (*App, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, ErrBackendRequired
	}

	log := b.logger
	if log == nil {
		log = newLogger(cfg.Log)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	store, err := b.buildKV(cfg)
	if err != nil {
		return nil, err
	}
	prov, err := b.buildProvider(cfg, log, now)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		cfg:      cfg,
		log:      log.WithField("component", "app"),
		now:      now,
		paths:    cfg.Routes.Paths(),
		provider: prov,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    audit.NewDispatcher(audit.Config(cfg.Audit), b.auditSink),
		ctx:      ctx,
		cancel:   cancel,
	}

	api := b.backend
	if cfg.Backend.BreakerEnabled {
		app.breaker = backend.WithBreaker(api, backend.BreakerConfig{
			Name:                "backend",
			MaxRequests:         cfg.Backend.MaxRequests,
			Interval:            cfg.Backend.Interval,
			Timeout:             cfg.Backend.Timeout,
			ConsecutiveFailures: cfg.Backend.ConsecutiveFailures,
		}, log, app.onBackendChange)
		api = app.breaker
	}

	app.manager = lifecycle.New(lifecycle.Config{
		LoadTimeout: cfg.Stores.LoadTimeout,
		OnStale:     app.onStale,
	}, log)

	opts := stores.Options{
		Logger: log,
		Hooks:  stores.Hooks{OnAction: app.onAction},
		Now:    now,
	}
	cache := session.NewCache(store, cfg.Session.CacheKey, cfg.Session.UserKey)
	app.auth = stores.NewAuth(prov, cache, opts, app.onUserChange)
	app.membership = stores.NewMembership(api, opts)
	app.meals = stores.NewMeals(api, cfg.Stores.MealDays, opts)
	app.absences = stores.NewAbsences(api, opts)
	app.network = stores.NewNetwork(api, cfg.Network.ProbeInterval, cfg.Network.ProbeBurst, opts)

	if err := app.register(); err != nil {
		cancel()
		app.audit.Close()
		return nil, err
	}
	app.unwatch = app.manager.Watch(app.onStoreState)

	b.built = true
	return app, nil
}

func (b *Builder) buildKV(cfg Config) (kv.Store, error) {
	store := b.kv
	if store == nil {
		switch cfg.Storage.Backend {
		case "redis":
			if b.redis == nil {
				return nil, fmt.Errorf("%w: storage backend redis", ErrRedisRequired)
			}
			store = kv.NewRedis(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.TTL)
		default:
			store = kv.NewMemory()
		}
	}
	if cfg.Storage.EncryptionKey == "" {
		return store, nil
	}
	key, err := kv.ParseKey(cfg.Storage.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: Storage EncryptionKey: %v", ErrConfigInvalid, err)
	}
	enc, err := kv.NewEncrypted(store, key)
	if err != nil {
		return nil, fmt.Errorf("%w: Storage EncryptionKey: %v", ErrConfigInvalid, err)
	}
	return enc, nil
}

func (b *Builder) buildProvider(cfg Config, log logrus.FieldLogger, now func() time.Time) (provider.Provider, error) {
	if b.provider != nil {
		return b.provider, nil
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: built-in provider", ErrRedisRequired)
	}
	if cfg.Auth.SigningKey == "" {
		return nil, ErrSigningKeyRequired
	}
	key, err := decodeSigningKey(cfg.Auth.SigningMethod, cfg.Auth.SigningKey)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Auth.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.Auth.SigningMethod),
		PrivateKey:    key,
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
		Leeway:        cfg.Auth.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	hasher, err := password.NewArgon2(cfg.Auth.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	dir := b.directory
	if dir == nil {
		dir = provider.NewMemoryDirectory()
	}
	local, err := provider.NewLocal(provider.LocalDeps{
		Directory: dir,
		Sessions:  session.NewStore(b.redis, cfg.Session.RedisPrefix),
		Tokens:    tokens,
		Hasher:    hasher,
		Limiter: rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Auth.MaxSignInAttempts,
			Window:      cfg.Auth.SignInWindow,
			PerIP:       cfg.Auth.ThrottleByIP,
		}),
		Logger: log,
	}, provider.LocalConfig{SessionTTL: cfg.Session.TTL, Now: now})
	if err != nil {
		return nil, err
	}
	return local, nil
}

// decodeSigningKey accepts a PEM block or base64 for ed25519, and the raw
// secret for hs256.
func decodeSigningKey(method, key string) ([]byte, error) {
	if method == "hs256" || strings.HasPrefix(strings.TrimSpace(key), "-----BEGIN") {
		return []byte(key), nil
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: Auth SigningKey is neither PEM nor base64", ErrConfigInvalid)
	}
	return raw, nil
}

func newLogger(cfg LogConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
