package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"farewatch/internal/api"
	"farewatch/internal/collector"
	"farewatch/internal/config"
	"farewatch/internal/constants"
	"farewatch/internal/dispatch"
	"farewatch/internal/logger"
	"farewatch/internal/matcher"
	"farewatch/internal/supervisor"
	"farewatch/internal/users"
	"farewatch/pkg/bootstrap"
	"farewatch/pkg/health"
	"farewatch/pkg/logging"
	"farewatch/pkg/metrics"
	"farewatch/pkg/migrations"
	"farewatch/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	redisClient    *redis.Client
	notifier       dispatch.Notifier
	users          *users.Service
	pipeline       *supervisor.Supervisor
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitQueue(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	mongoCfg := a.Config.Database.MongoDB
	db := mongoClient.Database(mongoCfg.Database)
	if err := migrations.EnsureUsersCollection(ctx, db, mongoCfg.UsersCollection); err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to ensure user indexes", "error", err)
	}
	a.users = users.NewService(users.NewMongoRepository(db, mongoCfg.UsersCollection), a.Config.CircuitBreaker, a.Logger)

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	return nil
}

func (a *App) initPipeline() error {
	notifier, err := dispatch.NewNotifier(a.Config.Notifier, a.redisClient, a.Logger)
	if err != nil {
		return err
	}
	a.notifier = notifier

	dispatcher, err := dispatch.NewDispatcher(a.Config.Notifier, notifier, a.Logger)
	if err != nil {
		return err
	}

	priceCollector, err := collector.New(
		a.Config.Collector,
		collector.NewHTTPFetcher(a.Config.Collector.RequestTimeout),
		a.Queue,
		a.Logger,
	)
	if err != nil {
		return err
	}

	notificationMatcher := matcher.NewService(a.Queue, a.users, dispatcher, matcher.Options{
		NotifyPer:           a.Config.Matcher.NotifyPer,
		RequireSameCurrency: a.Config.Matcher.RequireSameCurrency,
	}, a.Config.Matcher.IdleDelay, a.Logger)

	a.pipeline = supervisor.New(a.Logger,
		supervisor.Task{Name: "collector", Run: priceCollector.Run, RestartDelay: priceCollector.Interval()},
		supervisor.Task{Name: "matcher", Run: notificationMatcher.Run, RestartDelay: notificationMatcher.IdleDelay()},
	)

	a.Logger.Infow("Pipeline configured",
		"sources", len(a.Config.Collector.Sources),
		"notifier", notifier.Name(),
		"queue", a.Queue.Name(),
	)
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)

	checks := health.NewCheckerRegistry()
	checks.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		checks.Register(health.NewRedisChecker(a.redisClient))
	}
	checks.RegisterOptional(health.NewBrokerChecker(a.Queue))

	router := api.NewRouter(constants.ServiceName, checks, a.Logger,
		users.NewHandler(a.users, a.Logger),
		api.NewQueueHandler(a.Queue, a.Config.Broker.Kafka.Queue, a.Logger),
	)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// Run serves HTTP and runs the pipeline until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.pipeline.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down farewatch")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if closer, ok := a.notifier.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("notifier close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
