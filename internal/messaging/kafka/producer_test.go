package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			t.Errorf("expected event type header, got %v", msg.Headers)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded map[string]string
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded["order_id"] != "order-123" {
			t.Errorf("unexpected body %s", value)
		}
		return nil
	})

	err := producer.PublishEvent(TopicOrderEvents, "order-123", map[string]string{"order_id": "order-123"},
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte("order.activated")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", map[string]string{}); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	if err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParseEnvelope(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Key:   []byte("order-7"),
		Value: []byte(`{"id":"m-1","event_type":"order.activated","payload":{"order_id":"order-7"}}`),
	}
	envelope, err := ParseEnvelope(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if envelope.AggregateID != "order-7" {
		t.Fatalf("expected key fallback for aggregate id, got %q", envelope.AggregateID)
	}
	if string(envelope.Payload) != `{"order_id":"order-7"}` {
		t.Fatalf("unexpected payload %s", envelope.Payload)
	}

	if _, err := ParseEnvelope(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected parse error")
	}
}
