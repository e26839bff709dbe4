package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
)

// SignalBridge превращает события заказов из Kafka в сигналы локальной шины,
// чтобы панели в других процессах узнавали об активации и новых позициях.
type SignalBridge struct {
	bus    *signal.Bus
	logger *log.Entry
}

// NewSignalBridge создаёт мост. logger может быть nil.
func NewSignalBridge(bus *signal.Bus, logger *log.Entry) *SignalBridge {
	if logger == nil {
		logger = log.WithField("component", "kafka-signal-bridge")
	}
	return &SignalBridge{bus: bus, logger: logger}
}

// Handle реализует MessageHandler. Неизвестные типы событий пропускаются.
func (b *SignalBridge) Handle(_ context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := ParseEnvelope(message)
	if err != nil {
		return err
	}
	if envelope.AggregateID == "" {
		return fmt.Errorf("order event %s without aggregate id", envelope.ID)
	}

	var msg signal.Message
	switch envelope.EventType {
	case domain.EventTypeOrderActivated:
		msg = signal.DeactivateMessage(envelope.AggregateID)
	case domain.EventTypeOrderLinesAdded:
		msg = signal.FetchMessage(envelope.AggregateID)
	default:
		b.logger.WithField("event_type", envelope.EventType).Debug("order event ignored")
		return nil
	}

	b.logger.WithFields(log.Fields{
		"order_id":   envelope.AggregateID,
		"event_type": envelope.EventType,
	}).Debug("order event bridged to signal bus")
	b.bus.Publish(msg)
	return nil
}
