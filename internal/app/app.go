package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/sixty60/internal/auth"
	"github.com/utafrali/sixty60/internal/basket"
	"github.com/utafrali/sixty60/internal/catalog"
	"github.com/utafrali/sixty60/internal/config"
	"github.com/utafrali/sixty60/internal/event"
	"github.com/utafrali/sixty60/internal/orders"
	"github.com/utafrali/sixty60/internal/platform"
	"github.com/utafrali/sixty60/internal/session"
	"github.com/utafrali/sixty60/internal/stores"
	"github.com/utafrali/sixty60/pkg/database"
	"github.com/utafrali/sixty60/pkg/health"
	"github.com/utafrali/sixty60/pkg/httpclient"
	pkgkafka "github.com/utafrali/sixty60/pkg/kafka"
	"github.com/utafrali/sixty60/pkg/telemetry"
)

// ServiceName identifies the client in logs, traces, metrics and events.
const ServiceName = "sixty60"

// Version is stamped at build time.
var Version = "dev"

// App holds the wired dependency graph for one CLI invocation.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Sessions  *session.Manager
	Platform  *platform.Client
	Stores    *stores.Resolver
	Handshake *auth.Handshake
	Catalog   *catalog.Service
	Orders    *orders.Service
	Basket    *basket.Reconciler
	Events    *event.Producer
	Health    *health.Registry

	// StateLocation describes where sessions are saved, for user-facing output.
	StateLocation string
	DeviceID      string

	closers []func(context.Context) error
}

// New builds the application. Nothing here talks to the platform; only the
// session backend is contacted to read the device id.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger, Health: health.NewRegistry(health.DefaultTimeout)}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tracerShutdown, err := telemetry.InitTracer(ctx, telemetry.TracingConfig{
		ServiceName:    ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, tracerShutdown)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Sessions = session.NewManager(store, logger)

	a.DeviceID, err = a.Sessions.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	a.Platform = platform.NewClient(platform.Options{
		Endpoints: platform.Endpoints{
			BFF:     cfg.BFFBaseURL,
			DSL:     cfg.DSLBaseURL,
			Auth:    cfg.AuthBaseURL,
			Catalog: cfg.CatalogBaseURL,
			Orders:  cfg.OrdersBaseURL,
		},
		Credentials: platform.Credentials{
			APIKey:       cfg.APIKey,
			AuthAPIKey:   cfg.AuthAPIKey,
			ProfileToken: cfg.ProfileToken,
		},
		App:      platform.AppIdentity{Version: cfg.AppVersion, Build: cfg.AppBuild},
		DeviceID: a.DeviceID,
	}, a.doers(), logger)

	a.Events = a.newEvents()

	a.Stores = stores.NewResolver(a.Platform, stores.Coordinates{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	}, logger)
	a.Handshake = auth.NewHandshake(a.Platform, a.Stores, logger)
	a.Catalog = catalog.NewService(a.Platform, logger)
	a.Orders = orders.NewService(a.Platform, logger)
	a.Basket = basket.NewReconciler(a.Platform, a.Stores, a.Catalog, a.Events, logger)

	return a, nil
}

// doers builds one circuit breaker per platform host over a shared transport,
// so an outage on one backend does not block calls to the others.
func (a *App) doers() map[platform.Host]platform.HTTPDoer {
	base := httpclient.New(a.cfg.HTTPClient())
	doers := make(map[platform.Host]platform.HTTPDoer, len(platform.Hosts))
	for _, host := range platform.Hosts {
		cbCfg := a.cfg.CircuitBreaker(ServiceName + "-" + string(host))
		doers[host] = httpclient.NewCircuitBreakerClient(base, cbCfg, a.logger)
	}
	return doers
}

func (a *App) newEvents() *event.Producer {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.logger.Debug("kafka brokers not configured, events disabled")
		return event.NewProducer(nil, a.cfg.KafkaTopicPrefix, a.DeviceID, a.logger)
	}

	brokers := a.cfg.KafkaBrokers
	a.Health.Register("kafka", func(ctx context.Context) error {
		return pkgkafka.PingBrokers(ctx, brokers)
	})

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	a.logger.Debug("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	return event.NewProducer(producer, a.cfg.KafkaTopicPrefix, a.DeviceID, a.logger)
}

func (a *App) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.SessionBackend {
	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPass,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.StateLocation = "redis://" + a.cfg.RedisAddr
		a.Health.Register("session_store", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return session.NewRedisStore(client, session.DefaultRedisPrefix, a.cfg.SessionTTL()), nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(a.cfg.PostgresDSN), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect session postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "session"); err != nil {
			a.logger.Warn("register pool metrics", slog.String("error", err.Error()))
		}

		store := session.NewPostgresStore(pool, database.NewQueryTracer(a.cfg.SlowQueryThreshold(), a.logger))
		if err := store.Migrate(ctx, a.logger); err != nil {
			return nil, fmt.Errorf("migrate session store: %w", err)
		}
		a.StateLocation = "postgres session_states"
		a.Health.Register("session_store", pool.Ping)
		return store, nil

	default:
		a.StateLocation = filepath.Join(a.cfg.StateDir, session.KeyAuth)
		a.Health.Register("session_store", stateDirCheck(a.cfg.StateDir))
		return session.NewFileStore(a.cfg.StateDir), nil
	}
}

// stateDirCheck passes when dir is a directory or does not exist yet; the
// file store creates it on first save.
func stateDirCheck(dir string) health.Checker {
	return func(context.Context) error {
		info, err := os.Stat(dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("state path %s is not a directory", dir)
		}
		return nil
	}
}

// Close pushes metrics and releases everything New opened, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.cfg != nil {
		if err := telemetry.PushMetrics(ctx, a.cfg.PushgatewayURL, ServiceName, a.DeviceID); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
