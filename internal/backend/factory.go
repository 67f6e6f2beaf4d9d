package backend

import (
	"context"
	"errors"
	"fmt"

	"dividi/internal/amqp"
	"dividi/internal/cache"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/services"
	"dividi/internal/storage"
	"dividi/internal/storage/memory"
)

type DefaultFactory struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewFactory returns the standard factory. m may be nil.
func NewFactory(logger *log.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		metrics: m,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, ready, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithMetrics(f.metrics),
	}

	var manager *cache.Manager
	if config.CacheSize > 0 {
		plans := cache.NewLRUCache[services.Plan](config.CacheSize, config.CacheTTL)
		manager = cache.NewManager(f.logger)
		manager.Register(plans)
		manager.StartCleanup(ctx, config.CacheTTL)
		opts = append(opts, services.WithPlanCache(plans))
	}

	// AMQP is optional; a broker outage at startup degrades to no events.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			amqpClient = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, services.WithPublisher(amqpClient))
		}
	}

	ledger := services.NewLedgerService(repo, opts...)

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", amqpClient != nil,
		"plan_cache", config.CacheSize > 0)

	return &Result{
		Ledger: ledger,
		AMQP:   amqpClient,
		Ready:  ready,
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return ledger.Close()
		},
	}, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, func(context.Context) error, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, repo.Ping, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory repository")
		return memory.NewStore(), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, errors.New("unsupported backend type: " + config.Type.String())
	}
}
