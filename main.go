package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"
	"publish-pipeline/infrastructure/cache"
	catalogclient "publish-pipeline/infrastructure/clients/catalog"
	youtubeclient "publish-pipeline/infrastructure/clients/youtube"
	"publish-pipeline/infrastructure/configuration"
	"publish-pipeline/infrastructure/connectivity"
	"publish-pipeline/infrastructure/logger"
	"publish-pipeline/infrastructure/media"
	"publish-pipeline/infrastructure/persistence"
	"publish-pipeline/infrastructure/pubsub"
	"publish-pipeline/infrastructure/realtime"
	"publish-pipeline/infrastructure/servicebus"
	httpHandler "publish-pipeline/interfaces/http"
	"publish-pipeline/server"
	"publish-pipeline/usecase"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)
	cfg := configuration.C

	draftRepo, closeRepo, err := InitiateDraftRepository(ctx, cfg.Database)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Draft store initialization failed")
	}
	defer closeRepo()

	store := usecase.NewDraftStore(draftRepo)
	if n, err := store.ReconcilePending(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Draft reconciliation failed")
	} else {
		logger.GetLogger().WithField("reconciled", n).Info("Draft store ready")
	}

	httpClient := &http.Client{}
	catalog, healthURL, err := InitiateCatalog(ctx, cfg.Catalog, httpClient)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Catalog initialization failed")
	}

	if cfg.RedisClient.Host != "" {
		redisClient, err := cache.NewCache(
			ctx,
			fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
			cfg.RedisClient.Username,
			cfg.RedisClient.Password,
		)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - catalog reads are not cached")
		} else {
			catalog = cache.NewCachedCatalog(catalog, cache.NewRecordCache(redisClient, cfg.RedisClient.TTL))
			defer redisClient.Close()
		}
	}

	eventHub := realtime.NewEventHub()
	sinks := []repository.IEventPublisher{eventHub}

	pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PubSub not available - events are not forwarded to Pub/Sub")
	} else {
		pubsubEvents := pubsub.NewEventPublisher(pubSubClient, cfg.Pubsub.Topic)
		sinks = append(sinks, pubsubEvents)
		defer func() {
			pubsubEvents.Stop()
			_ = pubSubClient.Close()
		}()
	}

	azServiceBusClient, err := servicebus.NewServiceBus(ctx, cfg.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - events are not forwarded to Service Bus")
	} else {
		sinks = append(sinks, servicebus.NewEventPublisher(azServiceBusClient, cfg.ServiceBus.Queue))
		defer azServiceBusClient.Close(context.Background())
	}
	events := usecase.NewEventBroadcaster(sinks...)

	probe := connectivity.NewProbe(httpClient, healthURL, cfg.Connectivity.Timeout, cfg.Connectivity.Interval)
	probe.OnRestored(func() {
		_ = events.PublishEvent(ctx, connectivityEvent(true))
	})
	probe.OnLost(func() {
		_ = events.PublishEvent(ctx, connectivityEvent(false))
	})

	encoder := media.NewEncoder(httpClient, cfg.Media.ProbeTimeout, cfg.Media.FetchTimeout, cfg.Media.MaxBytes)
	coordinator := usecase.NewRepublishCoordinator(store, catalog, encoder, events, usecase.RepublishConfig{
		Delay:          cfg.Republish.Delay,
		AttemptTimeout: cfg.Republish.AttemptTimeout,
	})
	coordinator.Start(ctx, probe)

	secret := cfg.App.SecretKey
	if secret == "" {
		secret = uuid.NewString()
	}
	publisher := usecase.NewPublisher(store, catalog, encoder, probe, coordinator, events, secret)

	router := server.InitiateRouter(
		httpHandler.NewPublishHandler(publisher),
		httpHandler.NewCatalogHandler(publisher),
		httpHandler.NewHealthHandler(probe),
		eventHub,
		allowedOrigins(),
	)

	g.Go(func() error {
		return probe.Run(ctx)
	})

	app := cfg.App
	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			if app.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDraftRepository opens the backend named by database.driver and makes
// sure its schema exists.
func InitiateDraftRepository(ctx context.Context, db configuration.Database) (repository.IDraftRepository, func(), error) {
	noop := func() {}
	switch strings.ToLower(db.Driver) {
	case "", "file":
		repo, err := persistence.NewDraftFileStore(db.File.Path)
		return repo, noop, err
	case "postgres", "psql":
		sqlDB, err := persistence.NewPostgreSQLDB(db.Psql)
		if err != nil {
			return nil, noop, err
		}
		if err := persistence.EnsureDraftSchema(sqlDB); err != nil {
			return nil, noop, err
		}
		return persistence.NewDraftRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
	case "mssql":
		sqlDB, err := persistence.NewMSSQLDB(db.Mssql)
		if err != nil {
			return nil, noop, err
		}
		if err := persistence.EnsureDraftSchemaMSSQL(sqlDB); err != nil {
			return nil, noop, err
		}
		return persistence.NewDraftRepositoryMSSQL(sqlDB), func() { _ = sqlDB.Close() }, nil
	case "mysql":
		gormDB, err := persistence.NewMySQLGorm(db.MySql)
		if err != nil {
			return nil, noop, err
		}
		if err := persistence.EnsureDraftSchemaGorm(gormDB); err != nil {
			return nil, noop, err
		}
		closer := noop
		if sqlDB, err := gormDB.DB(); err == nil {
			closer = func() { _ = sqlDB.Close() }
		}
		return persistence.NewDraftRepositoryGorm(gormDB), closer, nil
	case "mongo", "mongodb":
		client, err := persistence.NewMongoDb(ctx, db.Mongo)
		if err != nil {
			return nil, noop, err
		}
		repo := persistence.NewDraftRepositoryMongo(client, db.Mongo.Name)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, noop, fmt.Errorf("unknown database driver %q", db.Driver)
}

// InitiateCatalog builds the remote gateway for catalog.mode and returns the URL
// the connectivity probe should poll.
func InitiateCatalog(ctx context.Context, c configuration.Catalog, httpClient *http.Client) (repository.ICatalog, string, error) {
	switch strings.ToLower(c.Mode) {
	case "", "http":
		client := catalogclient.NewClient(c.BaseURL, httpClient, c.Timeout)
		return client, client.HealthURL(c.HealthPath), nil
	case "youtube":
		yc := configuration.GetYouTubeConfig()
		client, err := youtubeclient.NewYouTubeClient(ctx, &youtubeclient.Config{
			ClientID:     yc.ClientID,
			ClientSecret: yc.ClientSecret,
			RedirectURL:  yc.RedirectURL,
			AccessToken:  yc.AccessToken,
			RefreshToken: yc.RefreshToken,
			ChannelID:    yc.ChannelID,
			APIKey:       yc.APIKey,
			Timeout:      c.Timeout,
		})
		if err != nil {
			return nil, "", err
		}
		return client, youtubeclient.HealthURL, nil
	}
	return nil, "", fmt.Errorf("unknown catalog mode %q", c.Mode)
}

func connectivityEvent(reachable bool) model.PipelineEvent {
	t := model.EventConnectivityLost
	if reachable {
		t = model.EventConnectivityRestored
	}
	return model.PipelineEvent{Type: t, OccurredAt: time.Now().UTC()}
}

func allowedOrigins() []string {
	v := os.Getenv("CORS_ALLOWED_ORIGINS")
	if v == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
