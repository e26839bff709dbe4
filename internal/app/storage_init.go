package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/dynamo"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
)

// runtimeDependencies — хранилище, выбранное конфигурацией.
type runtimeDependencies struct {
	tx            domain.Transactor
	catalog       domain.CatalogRepository
	catalogWriter domain.CatalogWriter
	orders        domain.OrderRepository
	lines         domain.OrderLineRepository
	accounts      domain.AccountRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	ping          func(ctx context.Context) error
	close         func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			tx:            store,
			catalog:       store.Catalog(),
			catalogWriter: store.Catalog(),
			orders:        store.Orders(),
			lines:         store.Lines(),
			accounts:      store.Accounts(),
			outbox:        store.Outbox(),
			timeline:      store.Timeline(),
			ping:          store.Ping,
			close:         func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage requires DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.Info("using postgres storage")
		return &runtimeDependencies{
			tx:            store,
			catalog:       store.Catalog(),
			catalogWriter: store.Catalog(),
			orders:        store.Orders(),
			lines:         store.Lines(),
			accounts:      store.Accounts(),
			outbox:        store.Outbox(),
			timeline:      store.Timeline(),
			ping:          store.Ping,
			close:         store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initAudit выбирает журнал попыток подтверждения. ping == nil для памяти.
func initAudit(ctx context.Context, cfg Config, logger *log.Entry) (domain.ConfirmationAuditRepository, func(context.Context) error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.AuditDriver)) {
	case "", AuditDriverMemory:
		return memory.NewConfirmationAuditRepository(), nil, nil
	case AuditDriverDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamo.Options{
			Region:          cfg.DynamoDBRegion,
			Endpoint:        cfg.DynamoDBEndpoint,
			AccessKeyID:     cfg.DynamoDBAccessKey,
			SecretAccessKey: cfg.DynamoDBSecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		repo := dynamo.NewConfirmationAuditRepository(client, cfg.DynamoDBTable)
		if err := repo.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure audit table: %w", err)
		}
		logger.WithField("table", cfg.DynamoDBTable).Info("using dynamodb confirmation audit")
		return repo, repo.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unsupported audit driver %q", cfg.AuditDriver)
	}
}
