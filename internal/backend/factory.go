package backend

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/csvfile"
	"tally/internal/ledger"
	"tally/internal/memory"
	"tally/internal/services"
	"tally/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		store := csvfile.New(config.CSVPath)
		f.logger.Info("Initialized CSV backend", "path", config.CSVPath)
		return f.wrapWithEvents(store, config), nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		result := f.wrapWithEvents(repo, config)
		result.Cleanup = chainCleanup(result.Cleanup, repo.Close)
		return result, nil

	case MemoryBackend:
		store := memory.New()
		f.logger.Info("Initialized memory backend")
		return f.wrapWithEvents(store, config), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// wrapWithEvents wraps the store in a RecordService with an optional AMQP
// publisher. Broker failures at startup are logged and the service runs
// without event publishing.
func (f *DefaultFactory) wrapWithEvents(store ledger.Store, config Config) *Result {
	var (
		events services.EventPublisher
		closer func() error
	)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			events = client
			closer = client.Close
		}
	}

	svc := services.NewRecordService(store, events, closer)
	return &Result{
		Store:   svc,
		Cleanup: svc.Close,
	}
}

func chainCleanup(fns ...func() error) CleanupFunc {
	return func() error {
		var firstErr error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
