package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"rentals/internal/app/handlers"
	"rentals/internal/app/middleware"
	"rentals/internal/app/uow"
	"rentals/internal/infra/broker/kafka"
	natsbroker "rentals/internal/infra/broker/nats"
	"rentals/internal/infra/config"
	mongodb "rentals/internal/infra/db/mongo"
	"rentals/internal/infra/db/postgres"
	ginserver "rentals/internal/infra/http/gin"
	"rentals/internal/infra/inbox"
	"rentals/internal/infra/lock/redislock"
	"rentals/internal/infra/obs"
	infraoutbox "rentals/internal/infra/outbox"
	"rentals/internal/infra/storage/memory"
)

const (
	appName            = "rentals"
	listingEventsTopic = "listing.events.v1"
	inboxConsumer      = "booking-listing-events"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rentals stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("rentals stopped")
}

// backend is one storage driver's view of the process.
type backend struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      infraoutbox.Store
	inbox       inbox.Inbox
	ready       func(ctx context.Context) error
	close       func(ctx context.Context) error
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := be.close(closeCtx); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}()

	producer, closeProducer, err := openProducer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProducer()

	worker := infraoutbox.NewWorker(be.outbox, producer)
	worker.Interval = cfg.OutboxPollInterval
	worker.TopicPrefix = cfg.KafkaTopicPrefix
	worker.Source = appName
	worker.Logger = logger.With("component", "outbox")

	buses := handlers.Build(handlers.Deps{
		UoWFactory:     be.factory,
		Idempotency:    be.idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Notifier:       worker,
		Retry: middleware.RetryPolicy{
			Attempts: cfg.TxRetryAttempts,
			Backoff:  cfg.RetryBackoff,
		},
		Logger: logger,
	})

	if err := loadListingFixtures(ctx, cfg.ListingsFixtures, buses.Commands, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingsFixtures)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: be.ready}, ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: buses.Commands,
			Queries:  buses.Queries,
			Logger:   logger,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: buses.Queries,
			Logger:  logger,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.BrokerDriver == config.BrokerKafka && cfg.KafkaConsume {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, appName, &kafka.ListingEventsHandler{
			Bus:    buses.Commands,
			Inbox:  be.inbox,
			Logger: logger.With("component", "listing-events"),
		}, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error {
			err := consumer.Run(gctx, []string{cfg.KafkaTopicPrefix + listingEventsTopic})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		return openMongo(ctx, cfg, logger)
	case config.StoragePostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		store := memory.NewStore()
		logger.Info("storage ready", "driver", config.StorageMemory)
		return backend{
			factory:     memory.NewFactory(store, nil, cfg.LockWait),
			idempotency: memory.NewIdempotencyStore(),
			outbox:      store,
			inbox:       inbox.NewMemoryStore(),
			ready:       store.Ping,
			close:       func(context.Context) error { return nil },
		}, nil
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return backend{}, err
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		return backend{}, err
	}
	outboxStore, err := infraoutbox.NewMongoStore(ctx, client.DB)
	if err != nil {
		return backend{}, err
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return backend{}, err
	}
	inboxStore, err := inbox.NewMongoStore(ctx, client.DB, inboxConsumer)
	if err != nil {
		return backend{}, err
	}
	factory := &mongodb.Factory{DB: client.DB, Outbox: outboxStore, LockWait: cfg.LockWait}
	closers := []func(context.Context) error{client.Close}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return backend{}, err
		}
		factory.Locker = redislock.New(rdb, cfg.LockTTL)
		closers = append(closers, func(context.Context) error { return rdb.Close() })
	}
	logger.Info("storage ready", "driver", config.StorageMongo, "db", cfg.MongoDB, "redis_lock", factory.Locker != nil)
	return backend{
		factory:     factory,
		idempotency: idem,
		outbox:      outboxStore,
		inbox:       inboxStore,
		ready:       client.Ping,
		close: func(ctx context.Context) error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c(ctx))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return backend{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return backend{}, err
	}
	logger.Info("storage ready", "driver", config.StoragePostgres)
	return backend{
		factory:     &postgres.Factory{DB: db, LockWait: cfg.LockWait},
		idempotency: &postgres.IdempotencyStore{DB: db},
		outbox:      &postgres.OutboxStore{DB: db},
		inbox:       &postgres.InboxStore{DB: db, Consumer: inboxConsumer},
		ready:       db.PingContext,
		close:       func(context.Context) error { return db.Close() },
	}, nil
}

func openProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, func(), error) {
	switch cfg.BrokerDriver {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, appName, logger.With("component", "kafka"))
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case config.BrokerNATS:
		p, err := natsbroker.NewPublisher(cfg.NATSURL, appName, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return infraoutbox.LogProducer{Logger: logger}, func() {}, nil
	}
}
