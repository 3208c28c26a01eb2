package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"tacoshare-tracking-api/database"
	"tacoshare-tracking-api/internal/drivers"
	driverHandlers "tacoshare-tracking-api/internal/drivers/handlers"
	"tacoshare-tracking-api/internal/geocoding"
	geoHandlers "tacoshare-tracking-api/internal/geocoding/handlers"
	"tacoshare-tracking-api/internal/navigation"
	navHandlers "tacoshare-tracking-api/internal/navigation/handlers"
	navModels "tacoshare-tracking-api/internal/navigation/models"
	navRepositories "tacoshare-tracking-api/internal/navigation/repositories"
	navServices "tacoshare-tracking-api/internal/navigation/services"
	notificationServices "tacoshare-tracking-api/internal/notifications/services"
	"tacoshare-tracking-api/internal/tracking"
	"tacoshare-tracking-api/internal/tracking/adapters"
	trackingHandlers "tacoshare-tracking-api/internal/tracking/handlers"
	"tacoshare-tracking-api/internal/tracking/repositories"
	trackingServices "tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/internal/websockets"
	wsHandlers "tacoshare-tracking-api/internal/websockets/handlers"
	wsServices "tacoshare-tracking-api/internal/websockets/services"
	"tacoshare-tracking-api/pkg/config"
	"tacoshare-tracking-api/pkg/envx"
	"tacoshare-tracking-api/pkg/gmaps"
	"tacoshare-tracking-api/pkg/logger"
	"tacoshare-tracking-api/pkg/middleware"
	"tacoshare-tracking-api/pkg/router"
	"tacoshare-tracking-api/pkg/storage"
)

//	@title			TacoShare Tracking API
//	@version		1.0.0
//	@description	Courier delivery tracking, offline-capable route planning and live tracking events

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.

//	@accept		json
//	@produce	json

func main() {
	if err := envx.LoadEnv(); err != nil {
		slog.Warn("error loading .env file", slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("error loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]router.HealthCheck{}

	// Order collaborator (optional)
	var db *sql.DB
	if cfg.Database.Enabled() {
		conn, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()
		db = conn
		checks["database"] = func(ctx context.Context) error { return database.Health(ctx, db) }
		log.Info("order database connected")
	} else {
		log.Warn("order database not configured, order lookups and status sync disabled")
	}

	// Route/tile cache backend
	var store navRepositories.Store = navRepositories.NewMemoryStore()
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}
		store = navRepositories.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// Route provider
	maps, err := gmaps.NewClient(gmaps.Config{
		APIKey:            cfg.Maps.APIKey,
		BaseURL:           cfg.Maps.BaseURL,
		Timeout:           cfg.Maps.Timeout,
		RequestsPerSecond: cfg.Maps.RequestsPerSecond,
		MaxAttempts:       cfg.Maps.MaxAttempts,
		RetryBackoff:      cfg.Maps.RetryBackoff,
	}, log)
	if err != nil {
		return fmt.Errorf("error creating maps client: %w", err)
	}
	defer maps.Close()

	// Connectivity monitor
	monitor := navServices.NewConnectivityMonitor(
		navServices.NewHTTPProber(cfg.Navigation.ProbeURL, cfg.Navigation.ProbeTimeout),
		navServices.ConnectivityConfig{
			ProbeInterval:      cfg.Navigation.ProbeInterval,
			ProbeTimeout:       cfg.Navigation.ProbeTimeout,
			RecentlyBackWindow: cfg.Navigation.RecentlyBackWindow,
		},
		log,
	)
	unsubscribe := monitor.Subscribe(func(caps navModels.Capabilities) {
		log.Info("connectivity changed",
			slog.Bool("online", caps.Online),
			slog.Bool("recently_back", caps.RecentlyBack),
		)
	})
	defer unsubscribe()
	checks["route_provider"] = func(context.Context) error {
		if !monitor.Online() {
			return errors.New("offline")
		}
		return nil
	}

	// WebSocket hub
	hub := wsServices.NewHub(log)

	// Event publishers
	publisher, closePublishers, err := buildPublishers(ctx, cfg, db, hub, log)
	if err != nil {
		return err
	}

	trackingService := trackingServices.NewTrackingService(maps, publisher, trackingServices.Config{
		ArrivalThresholdMeters: cfg.Tracking.ArrivalThresholdMeters,
		ProviderTimeout:        cfg.Tracking.ProviderTimeout,
		MaxConcurrentETA:       cfg.Tracking.MaxConcurrentETA,
	}, log)

	// Navigation
	routeCache := navServices.NewRouteCache(store, cfg.Navigation.RouteCacheTTL, log)
	tileService := navServices.NewTileService(
		navServices.NewTileCache(store, cfg.Navigation.TileCacheTTL, cfg.Navigation.MaxTiles),
		navServices.NewHTTPTileFetcher(&http.Client{Timeout: cfg.Navigation.ProbeTimeout}, cfg.Navigation.TileURL, cfg.Navigation.TileUserAgent),
		monitor,
		cfg.Navigation.Zooms(),
		cfg.Navigation.MaxTilesPerZoom,
	)
	planner := navServices.NewRoutePlanner(maps, monitor, routeCache, cfg.Tracking.ProviderTimeout, log)
	rounds := navServices.NewRoundService(planner, routeCache, trackingService, tileService, log)

	// Background workers
	go hub.Run(ctx)
	go monitor.Run(ctx)

	// Rate limiting for provider-bound and position routes
	var limit func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		rl := middleware.RateLimitConfig{
			Rate:    cfg.RateLimit.Rate,
			Window:  cfg.RateLimit.Window,
			KeyFunc: middleware.UserKeyFunc,
			Logger:  log,
		}
		if redisClient != nil {
			rl.Limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.Rate, cfg.RateLimit.Window)
		} else {
			memory := middleware.NewRateLimiter(rl)
			defer memory.Stop()
			rl.Limiter = memory
		}
		limit = middleware.RateLimit(rl)
	}

	// Routes
	mux := http.NewServeMux()
	router.RegisterSystemRoutes(mux, router.SystemConfig{Checks: checks, Logger: log})

	var orderLookup trackingHandlers.OrderLookup
	if db != nil {
		orderLookup = repositories.NewOrderRepository(db)
	}

	drivers.RegisterRoutes(mux, driverHandlers.NewLocationHandler(trackingService), cfg.JWT.SecretKey, limit)
	tracking.RegisterRoutes(mux, trackingHandlers.NewTrackingHandler(trackingService, orderLookup, log), cfg.JWT.SecretKey)
	geocoding.RegisterRoutes(mux, geoHandlers.NewGeoHandler(maps, monitor, log), cfg.JWT.SecretKey, limit)
	navigation.RegisterRoutes(mux,
		navHandlers.NewRoundHandler(rounds, trackingService, log),
		navHandlers.NewNavigationHandler(monitor, tileService, log),
		cfg.JWT.SecretKey,
	)
	websockets.RegisterRoutes(mux,
		wsHandlers.NewWSHandler(hub, trackingService, cfg.CORS.AllowedOrigins, log),
		cfg.JWT.SecretKey,
	)

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.CORS(middleware.NewCORSConfig(cfg.CORS.AllowedOrigins)),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("env", envx.GetEnv()),
			slog.String("docs", "http://localhost:"+cfg.Server.Port+"/docs"),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", slog.String("error", err.Error()))
	}

	rounds.Wait()
	trackingService.Close()
	closePublishers()
	return nil
}

// buildPublishers assembles the tracking event fan-out. WebSocket and Kafka
// publish inline; push, SMS, order sync and archiving go through a queue.
func buildPublishers(ctx context.Context, cfg *config.Config, db *sql.DB, hub *wsServices.Hub, log *slog.Logger) (trackingServices.EventPublisher, func(), error) {
	inline := adapters.MultiPublisher{adapters.NewWebSocketPublisher(hub)}
	var closers []func()

	if cfg.Kafka.Enabled() {
		producer, err := adapters.NewSyncProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			return nil, nil, err
		}
		kafka := adapters.NewKafkaPublisher(producer, adapters.KafkaTopics{
			Positions: cfg.Kafka.PositionsTopic,
			Status:    cfg.Kafka.StatusTopic,
		}, log)
		inline = append(inline, kafka)
		closers = append(closers, func() {
			if err := kafka.Close(); err != nil {
				log.Warn("error closing kafka producer", slog.String("error", err.Error()))
			}
		})
		log.Info("kafka publisher enabled", slog.Any("brokers", cfg.Kafka.Brokers))
	}

	push, err := notificationServices.NewFCMService(ctx,
		cfg.Notifications.FirebaseCredentialsFile,
		cfg.Notifications.FirebaseCredentialsJSON,
		log,
	)
	if err != nil {
		return nil, nil, err
	}
	sms := notificationServices.NewSMSService(notificationServices.TwilioConfig{
		AccountSID: cfg.Notifications.TwilioAccountSID,
		APIKey:     cfg.Notifications.TwilioAPIKey,
		APISecret:  cfg.Notifications.TwilioAPISecret,
		FromPhone:  cfg.Notifications.TwilioFromPhone,
	}, log)

	var queued adapters.MultiPublisher
	if db != nil {
		orders := repositories.NewOrderRepository(db)
		queued = append(queued,
			adapters.NewNotificationPublisher(push, sms, orders),
			adapters.NewOrderSyncPublisher(orders, log),
		)
	} else {
		queued = append(queued, adapters.NewNotificationPublisher(push, nil, nil))
	}

	if cfg.Storage.R2.Enabled() {
		r2, err := storage.NewR2Client(ctx, cfg.Storage.R2)
		if err != nil {
			return nil, nil, err
		}
		queued = append(queued, adapters.NewArchivePublisher(r2, cfg.Storage.ArchivePrefix, log))
		log.Info("route archive enabled", slog.String("bucket", cfg.Storage.R2.BucketName))
	}

	// Workers outlive the signal context so queued events drain on shutdown
	async := adapters.NewAsyncPublisher(queued, cfg.Tracking.EventQueueSize, log)
	async.Start(context.WithoutCancel(ctx), cfg.Tracking.EventWorkers)
	inline = append(inline, async)
	closers = append(closers, async.Close)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return inline, closeAll, nil
}
