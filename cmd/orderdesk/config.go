package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
)

const (
	envHTTPAddr            = "ORDERDESK_HTTP_ADDR"
	envGRPCAddr            = "ORDERDESK_GRPC_ADDR"
	envMetricsAddr         = "ORDERDESK_METRICS_ADDR"
	envStorageDriver       = "ORDERDESK_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERDESK_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERDESK_POSTGRES_AUTO_MIGRATE"
	envSeedDemoData        = "ORDERDESK_SEED_DEMO_DATA"
	envConfirmationURL     = "ORDERDESK_CONFIRMATION_URL"
	envConfirmationTimeout = "ORDERDESK_CONFIRMATION_TIMEOUT"
	envPermissionsFile     = "ORDERDESK_PERMISSIONS_FILE"
	envDefaultProfile      = "ORDERDESK_DEFAULT_PROFILE"
	envGuardActivated      = "ORDERDESK_GUARD_ACTIVATED"
	envPageSize            = "ORDERDESK_PAGE_SIZE"
	envSessionIdleTTL      = "ORDERDESK_SESSION_IDLE_TTL"
	envKafkaBrokers        = "ORDERDESK_KAFKA_BROKERS"
	envKafkaGroupID        = "ORDERDESK_KAFKA_GROUP_ID"
	envOutboxPollInterval  = "ORDERDESK_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "ORDERDESK_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "ORDERDESK_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "ORDERDESK_OUTBOX_RETRY_DELAY"
	envOutboxRetention     = "ORDERDESK_OUTBOX_RETENTION"
	envAuditDriver         = "ORDERDESK_AUDIT_DRIVER"
	envDynamoDBTable       = "ORDERDESK_DYNAMODB_TABLE"
	envDynamoDBRegion      = "ORDERDESK_DYNAMODB_REGION"
	envDynamoDBEndpoint    = "ORDERDESK_DYNAMODB_ENDPOINT"
	envDynamoDBAccessKey   = "ORDERDESK_DYNAMODB_ACCESS_KEY_ID"
	envDynamoDBSecretKey   = "ORDERDESK_DYNAMODB_SECRET_ACCESS_KEY"
	envLogLevel            = "ORDERDESK_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// readConfig формирует конфигурацию из окружения процесса.
func readConfig() (app.Config, []string) {
	return readConfigFromEnv(os.LookupEnv)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	positive := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	boolean(envSeedDemoData, &cfg.SeedDemoData)

	str(envConfirmationURL, &cfg.ConfirmationURL)
	duration(envConfirmationTimeout, &cfg.ConfirmationTimeout, nonNegativeDuration, "must be >= 0")

	str(envPermissionsFile, &cfg.PermissionsFile)
	str(envDefaultProfile, &cfg.DefaultProfile)
	boolean(envGuardActivated, &cfg.GuardActivated)
	integer(envPageSize, &cfg.PageSize, positive, "must be > 0")
	duration(envSessionIdleTTL, &cfg.SessionIdleTTL, nonNegativeDuration, "must be >= 0")

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = app.ParseBrokers(v)
	}
	str(envKafkaGroupID, &cfg.KafkaGroupID)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	duration(envOutboxRetention, &cfg.OutboxRetention, nonNegativeDuration, "must be >= 0")

	str(envAuditDriver, &cfg.AuditDriver)
	cfg.AuditDriver = strings.ToLower(cfg.AuditDriver)
	str(envDynamoDBTable, &cfg.DynamoDBTable)
	str(envDynamoDBRegion, &cfg.DynamoDBRegion)
	str(envDynamoDBEndpoint, &cfg.DynamoDBEndpoint)
	str(envDynamoDBAccessKey, &cfg.DynamoDBAccessKey)
	str(envDynamoDBSecretKey, &cfg.DynamoDBSecretKey)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}
