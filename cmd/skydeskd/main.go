package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/bluehorizon/skydesk/api/controllers"
	"github.com/bluehorizon/skydesk/api/routes"
	"github.com/bluehorizon/skydesk/internal/cache"
	"github.com/bluehorizon/skydesk/internal/cron"
	"github.com/bluehorizon/skydesk/internal/drafts"
	"github.com/bluehorizon/skydesk/internal/graph"
	"github.com/bluehorizon/skydesk/internal/interactions"
	"github.com/bluehorizon/skydesk/internal/notifications"
	"github.com/bluehorizon/skydesk/internal/posts"
	"github.com/bluehorizon/skydesk/internal/profiles"
	"github.com/bluehorizon/skydesk/internal/search"
	"github.com/bluehorizon/skydesk/internal/session"
	"github.com/bluehorizon/skydesk/internal/timeline"
	"github.com/bluehorizon/skydesk/pkg/config"
	"github.com/bluehorizon/skydesk/pkg/db"
	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/gateway/xrpc"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/metrics"
	"github.com/bluehorizon/skydesk/pkg/migrate"
	"github.com/bluehorizon/skydesk/pkg/notify"
	"github.com/bluehorizon/skydesk/pkg/outbox"
	"github.com/bluehorizon/skydesk/pkg/redis"
	"github.com/bluehorizon/skydesk/pkg/security"
)

const serviceName = "skydeskd"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "data_dir": cfg.App.DataDir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "migrations", migrate.Up(ctx, logg, dbClient))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	broker := notify.NewBroker(logg)
	notifier := notify.Notifier(broker)
	if redisClient != nil {
		channel := redisClient.EventChannel(cfg.Redis.EventChannel, cfg.App.Env)
		notifier = notify.Fanout{broker, notify.NewRedisPublisher(redisClient, channel, logg)}
	}

	sessionStore, err := newSessionStore(cfg.Session)
	requireResource(ctx, logg, "session store", err)

	handle := gateway.NewHandle()
	var sessions *session.Service
	connector := xrpc.NewConnector(
		xrpc.WithTimeout(cfg.Gateway.Timeout),
		xrpc.WithUserAgent(cfg.Gateway.UserAgent),
		xrpc.WithRefreshHandler(func(ctx context.Context, creds gateway.Credentials) error {
			return sessions.Refreshed(ctx, creds)
		}),
	)
	sessions, err = session.NewService(session.ServiceParams{
		Logger:         logg,
		Store:          sessionStore,
		Connector:      connector,
		Gateway:        handle,
		DefaultService: cfg.Gateway.ServiceURL,
	})
	requireResource(ctx, logg, "session service", err)

	decoders := outbox.NewDecoderRegistry()
	posts.RegisterDecoders(decoders)
	outboxService, err := outbox.NewService(outbox.ServiceParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   decoders,
		Gateway:    handle,
		Notifier:   notifier,
		Metrics:    metrics.NewOutboxMetrics(registry),
		Policy: outbox.RetryPolicy{
			BaseDelay:   cfg.Outbox.BaseDelay,
			MaxDelay:    cfg.Outbox.MaxDelay,
			MaxAttempts: cfg.Outbox.MaxAttempts,
		},
		BatchSize: cfg.Outbox.BatchSize,
	})
	requireResource(ctx, logg, "outbox", err)

	draftService, err := drafts.NewService(drafts.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "drafts", err)

	postService, err := posts.NewService(posts.ServiceParams{
		Logger:     logg,
		Identities: sessions,
		Gateway:    handle,
		Outbox:     outboxService,
		Drafts:     draftService,
	})
	requireResource(ctx, logg, "posts", err)

	cacheStore := cache.NewRepository(dbClient.DB())
	cacheMetrics := metrics.NewCacheMetrics(registry)
	newManager := func(resource enums.ResourceType, policy cache.Policy) *cache.Manager {
		manager, err := cache.NewManager(cache.ManagerParams{
			Logger:   logg,
			Store:    cacheStore,
			Resource: resource,
			Policy:   policy,
			Notifier: notifier,
			Metrics:  cacheMetrics,
		})
		requireResource(ctx, logg, fmt.Sprintf("%s cache", resource), err)
		return manager
	}
	timelineCache := newManager(enums.ResourceTimeline, cache.RootOnly)
	notificationsCache := newManager(enums.ResourceNotifications, cache.EveryCursor)
	profileCache := newManager(enums.ResourceProfile, cache.Keyed)

	timelineService, err := timeline.NewService(sessions, handle, timelineCache)
	requireResource(ctx, logg, "timeline", err)
	profileService, err := profiles.NewService(sessions, handle, profileCache)
	requireResource(ctx, logg, "profiles", err)
	notificationService, err := notifications.NewService(sessions, handle, notificationsCache)
	requireResource(ctx, logg, "notifications", err)
	graphService, err := graph.NewService(handle)
	requireResource(ctx, logg, "graph", err)
	searchService, err := search.NewService(handle)
	requireResource(ctx, logg, "search", err)
	interactionService, err := interactions.NewService(interactions.ServiceParams{Logger: logg, Gateway: handle})
	requireResource(ctx, logg, "interactions", err)

	scheduler := newScheduler(ctx, cfg, logg, registry, redisClient, sessions, outboxService, handle, notificationService, notifier)
	sessions.OnEstablished(func(ctx context.Context, identity string) {
		scheduler.Trigger(cron.OutboxSweepJobName)
		scheduler.Trigger(cron.UnreadPollJobName)
	})

	if _, err := sessions.Resume(ctx); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotAuthenticated) {
			logg.Info(ctx, "no stored session; waiting for login")
		} else {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "stored session could not be resumed")
		}
	}

	health := map[string]controllers.Pinger{"db": dbClient}
	if redisClient != nil {
		health["redis"] = redisClient
	}
	server := &http.Server{
		Addr: cfg.API.Addr,
		Handler: routes.NewRouter(routes.Params{
			Env:           cfg.App.Env,
			Logger:        logg,
			Health:        health,
			Gatherer:      registry,
			Session:       sessions,
			Posts:         postService,
			Drafts:        draftService,
			Timeline:      timelineService,
			Threads:       timelineService,
			Graph:         graphService,
			Search:        searchService,
			Interactions:  interactionService,
			Profiles:      profileService,
			Notifications: notificationService,
			Outbox:        outboxService,
			Scheduler:     scheduler,
			Events:        broker,
		}),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := scheduler.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logg.Info(logg.WithField(ctx, "addr", cfg.API.Addr), "starting local api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.API.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "skydeskd stopped unexpectedly", err)
		os.Exit(1)
	}
	for _, manager := range []*cache.Manager{timelineCache, notificationsCache, profileCache} {
		manager.Wait()
	}
	logg.Info(ctx, "skydeskd shutting down gracefully")
}

func newSessionStore(cfg config.SessionConfig) (session.Store, error) {
	if !cfg.Persistent() {
		return session.NewMemoryStore(), nil
	}
	vault, err := security.NewVault(cfg.Passphrase, cfg)
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(cfg.VaultFile, vault)
}

func newScheduler(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	registry prometheus.Registerer,
	redisClient *redis.Client,
	sessions *session.Service,
	outboxService *outbox.Service,
	handle *gateway.Handle,
	notificationService *notifications.Service,
	notifier notify.Notifier,
) *cron.Service {
	sweepJob, err := cron.NewOutboxSweepJob(cron.OutboxSweepJobParams{
		Logger:     logg,
		Identities: sessions,
		Outbox:     outboxService,
	})
	requireResource(ctx, logg, "outbox sweep job", err)
	unreadJob, err := cron.NewUnreadPollJob(cron.UnreadPollJobParams{
		Session:       handle,
		Notifications: notificationService,
		Notifier:      notifier,
	})
	requireResource(ctx, logg, "unread poll job", err)

	locks := cron.LocalLocks()
	if redisClient != nil {
		locks = cron.RedisLocks(redisClient, func(job string) string {
			return redisClient.LockKey(cfg.App.Env, job)
		}, 0)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger: logg,
		Registry: cron.NewRegistry(
			cron.Schedule{Job: sweepJob, Interval: cfg.Outbox.SweepInterval},
			cron.Schedule{Job: unreadJob, Interval: cfg.Scheduler.UnreadPollInterval},
		),
		Locks:   locks,
		Metrics: metrics.NewCronJobMetrics(registry),
	})
	requireResource(ctx, logg, "scheduler", err)
	return scheduler
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
