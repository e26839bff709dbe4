package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/storage/dynamo"
)

// Storage drivers.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Audit drivers.
const (
	AuditDriverMemory   = "memory"
	AuditDriverDynamoDB = "dynamodb"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoData наполняет пустое хранилище демо-каталогом и заказом.
	SeedDemoData bool

	ConfirmationURL     string
	ConfirmationTimeout time.Duration

	PermissionsFile string
	// Пустой DefaultProfile означает default_profile из файла, иначе full.
	DefaultProfile  string
	GuardActivated  bool
	PageSize        int
	// SessionIdleTTL — простой, после которого сессия панелей закрывается; 0 хранит сессии до удаления.
	SessionIdleTTL  time.Duration

	KafkaBrokers       []string
	// KafkaGroupID — префикс группы consumer, процесс дописывает к нему свой суффикс.
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxRetention — срок хранения обработанных сообщений outbox; 0 выключает очистку.
	OutboxRetention    time.Duration

	AuditDriver       string
	DynamoDBTable     string
	DynamoDBRegion    string
	DynamoDBEndpoint  string
	DynamoDBAccessKey string
	DynamoDBSecretKey string
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedDemoData:        true,
		ConfirmationTimeout: 10 * time.Second,
		PageSize:            30,
		SessionIdleTTL:      30 * time.Minute,
		KafkaGroupID:        "orderdesk-panels",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		OutboxRetention:     24 * time.Hour,
		AuditDriver:         AuditDriverMemory,
		DynamoDBTable:       dynamo.DefaultTable,
		DynamoDBRegion:      "us-east-1",
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires PostgresDSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.AuditDriver {
	case AuditDriverMemory:
	case AuditDriverDynamoDB:
		if strings.TrimSpace(c.DynamoDBTable) == "" {
			errs = append(errs, errors.New("dynamodb audit requires DynamoDBTable"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported audit driver %q", c.AuditDriver))
	}

	if c.ConfirmationTimeout < 0 {
		errs = append(errs, errors.New("ConfirmationTimeout must be >= 0"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OutboxBatchSize must be > 0"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("OutboxPollInterval must be > 0"))
	}
	if c.SessionIdleTTL < 0 {
		errs = append(errs, errors.New("SessionIdleTTL must be >= 0"))
	}
	if c.OutboxRetention < 0 {
		errs = append(errs, errors.New("OutboxRetention must be >= 0"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled сообщает, настроен ли брокер.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ParseBrokers разбирает список брокеров через запятую.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
