package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/zidane123-web/payment/config"
	eventkafka "github.com/zidane123-web/payment/internal/adapter/event/kafka"
	httpHandler "github.com/zidane123-web/payment/internal/adapter/http/handler"
	"github.com/zidane123-web/payment/internal/adapter/kkiapay"
	"github.com/zidane123-web/payment/internal/adapter/storage/memory"
	mongoStorage "github.com/zidane123-web/payment/internal/adapter/storage/mongo"
	pgStorage "github.com/zidane123-web/payment/internal/adapter/storage/postgres"
	redisStorage "github.com/zidane123-web/payment/internal/adapter/storage/redis"
	"github.com/zidane123-web/payment/internal/core/ports"
	"github.com/zidane123-web/payment/internal/service"
	"github.com/zidane123-web/payment/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// App holds the wired dependencies shared by the API server and the ops CLI.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	Store          ports.PaymentStore
	Reconciler     *service.ReconcileServiceImpl
	TokenSvc       *service.JWTTokenService
	AuditSvc       ports.AuditService
	RateLimitStore ports.RateLimitStore // nil when Redis is disabled
	HealthCheckers []ports.HealthChecker

	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Build connects the configured store, cache and event publisher and wires the services.
// On error every dependency opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	auditRepo, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	var cache ports.VerificationCache
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.addCloser("redis", func(context.Context) error { return rdb.Close() })
		cache = redisStorage.NewVerificationCache(rdb)
		a.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
		a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	var publisher ports.StatusPublisher
	if cfg.Kafka.Enabled() {
		p := eventkafka.NewStatusPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		a.addCloser("kafka", func(context.Context) error { return p.Close() })
		publisher = p
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}

	verifier := kkiapay.NewClientFromConfig(cfg.KKiaPay, logger.Component(log, "kkiapay"))
	log.Info().Str("base_url", verifier.BaseURL()).Bool("sandbox", cfg.KKiaPay.Sandbox).Msg("KKiaPay client configured")

	a.Reconciler = service.NewReconcileService(
		a.Store,
		verifier,
		cache,
		cfg.Redis.VerificationTTL,
		publisher,
		logger.Component(log, "reconciler"),
	)
	a.TokenSvc = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.AuditSvc = service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	if cfg.Webhook.Secret == "" {
		log.Warn().Msg("webhook.secret is not set, every webhook will be rejected")
	}
	return a, nil
}

// buildStore opens the configured record store. The returned audit repository is nil
// unless the store is PostgreSQL.
func (a *App) buildStore(ctx context.Context) (ports.AuditRepository, error) {
	cfg, log := a.cfg, a.log

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Database.AutoMigrate {
			version, err := pgStorage.Migrate(ctx, cfg.Database.DSN(), log)
			if err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			log.Info().Int64("version", version).Msg("Database schema up to date")
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.addCloser("postgres", func(context.Context) error { pool.Close(); return nil })
		a.Store = pgStorage.NewPaymentStore(pool)
		a.HealthCheckers = append(a.HealthCheckers, pgStorage.NewHealthCheck(pool))
		return pgStorage.NewAuditRepo(pool), nil

	case config.StoreDriverMongo:
		client, err := mongoStorage.NewClient(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		a.addCloser("mongo", client.Disconnect)
		store := mongoStorage.NewPaymentStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("creating mongo indexes: %w", err)
		}
		a.Store = store
		a.HealthCheckers = append(a.HealthCheckers, mongoStorage.NewHealthCheck(client))
		return nil, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory payment store, records are lost on restart")
		a.Store = memory.NewPaymentStore()
		a.HealthCheckers = append(a.HealthCheckers, memory.HealthCheck{})
		return nil, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Router builds the HTTP engine over the wired services.
func (a *App) Router() *gin.Engine {
	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		ReconcileSvc:   a.Reconciler,
		SecretVerifier: service.NewSharedSecretVerifier(a.cfg.Webhook.Secret),
		WebhookHeader:  a.cfg.Webhook.Header,
		TokenSvc:       a.TokenSvc,
		RateLimitStore: a.RateLimitStore,
		HealthCheckers: a.HealthCheckers,
		AuditSvc:       a.AuditSvc,
		TrustedProxies: a.cfg.Server.TrustedProxies,
		Logger:         a.log,
	})
}

// Close releases dependencies in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.log.Error().Err(err).Str("dependency", c.name).Msg("Failed to close dependency")
			errs = append(errs, fmt.Errorf("closing %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) addCloser(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}
