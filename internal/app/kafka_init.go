package app

import (
	"os"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// kafkaRuntime — producer, publishers outbox и consumer моста сигналов.
type kafkaRuntime struct {
	producer  *kafka.Producer
	publisher *kafka.OutboxTopicPublisher
	dlq       *kafka.OutboxTopicPublisher
	consumer  *kafka.Consumer
}

// initKafka поднимает Kafka, если брокеры заданы. Без брокеров возвращает nil, nil.
// Ошибка consumer не фатальна: события публикуются, но соседние процессы не слышны.
func initKafka(cfg Config, hub *signal.Bus, logger *log.Entry) (*kafkaRuntime, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		return nil, err
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	rt := &kafkaRuntime{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		dlq:       kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
	}

	groupID := consumerGroupID(cfg.KafkaGroupID)
	bridge := kafka.NewSignalBridge(hub, logger.WithField("component", "kafka-signal-bridge"))
	consumer, err := kafka.NewConsumer(
		cfg.KafkaBrokers,
		groupID,
		[]string{kafka.TopicOrderEvents},
		bridge.Handle,
		kafka.WithConsumerLogger(logger.WithField("component", "kafka-consumer")),
		kafka.WithDLQProducer(producer),
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka consumer, panels will not see other instances")
	} else {
		rt.consumer = consumer
		logger.WithField("group_id", groupID).Info("kafka consumer initialized")
	}
	return rt, nil
}

// consumerGroupID делает группу уникальной для процесса: каждый экземпляр должен получать все события.
func consumerGroupID(base string) string {
	suffix := uuid.NewString()[:8]
	if host, err := os.Hostname(); err == nil && host != "" {
		suffix = host + "-" + suffix
	}
	return base + "-" + suffix
}

// close останавливает consumer и закрывает producer.
func (rt *kafkaRuntime) close(logger *log.Entry) {
	if rt == nil {
		return
	}
	if rt.consumer != nil {
		if err := rt.consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if err := rt.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
