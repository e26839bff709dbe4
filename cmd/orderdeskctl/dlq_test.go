package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

func outboxDLQMessage(t *testing.T, offset int64, orderID string) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"id":             "outbox-" + orderID,
		"aggregate_type": "order",
		"aggregate_id":   orderID,
		"event_type":     domain.EventTypeOrderActivated,
		"payload": map[string]any{
			"outbox_id":      "outbox-" + orderID,
			"aggregate_type": "order",
			"aggregate_id":   orderID,
			"event_type":     domain.EventTypeOrderActivated,
			"payload":        map[string]any{"order_id": orderID},
			"publish_error":  "timeout",
		},
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: offset, Value: raw}
}

func TestExtractReplay_ConsumerRecord(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"original_topic": kafka.TopicOrderEvents,
		"original_key":   "order-1",
		"original_value": `{"id":"evt-1"}`,
	})
	require.NoError(t, err)

	got, ok, err := extractReplay(&sarama.ConsumerMessage{Value: raw}, "fallback-topic")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicOrderEvents, got.topic)
	assert.Equal(t, "order-1", got.key)
	assert.Equal(t, `{"id":"evt-1"}`, string(got.value))
}

func TestExtractReplay_OutboxRecord(t *testing.T) {
	got, ok, err := extractReplay(outboxDLQMessage(t, 0, "order-1"), kafka.TopicOrderEvents)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kafka.TopicOrderEvents, got.topic)
	assert.Equal(t, "order-1", got.key)

	envelope, err := kafka.ParseEnvelope(&sarama.ConsumerMessage{Value: got.value})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeOrderActivated, envelope.EventType)
	assert.Equal(t, "outbox-order-1", envelope.ID)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(envelope.Payload))
}

func TestExtractReplay_OutboxRecordWithoutPayload(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"id":      "outbox-1",
		"payload": map[string]any{"outbox_id": "outbox-1"},
	})
	require.NoError(t, err)

	_, ok, err := extractReplay(&sarama.ConsumerMessage{Value: raw}, kafka.TopicOrderEvents)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestExtractReplay_UnknownRecord(t *testing.T) {
	_, ok, err := extractReplay(&sarama.ConsumerMessage{Value: []byte(`{"foo":"bar"}`)}, kafka.TopicOrderEvents)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplay_DryRunDoesNotPublish(t *testing.T) {
	source := &stubPartitionSource{consumers: map[int32]*stubPartitionConsumer{
		0: closedPartitionConsumer(outboxDLQMessage(t, 0, "order-1"), outboxDLQMessage(t, 1, "order-2")),
	}}
	deps := replayDeps{
		offsets:  &stubOffsetClient{ranges: map[int32][2]int64{0: {0, 2}}},
		consumer: source,
	}

	var out bytes.Buffer
	report, err := replay(context.Background(), testReplayOptions(false), deps, &out)
	require.NoError(t, err)
	assert.Equal(t, replayReport{scanned: 2, replayed: 2}, report)
	assert.Contains(t, out.String(), "candidate partition=0 offset=1")
}

func TestReplay_ExecutePublishesAndRespectsLimit(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	unknown := &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"foo":"bar"}`)}
	source := &stubPartitionSource{consumers: map[int32]*stubPartitionConsumer{
		0: closedPartitionConsumer(outboxDLQMessage(t, 0, "order-1"), unknown),
		1: closedPartitionConsumer(outboxDLQMessage(t, 0, "order-2"), outboxDLQMessage(t, 1, "order-3")),
	}}
	deps := replayDeps{
		offsets:  &stubOffsetClient{ranges: map[int32][2]int64{0: {0, 2}, 1: {0, 2}}},
		consumer: source,
		producer: producer,
	}
	opts := testReplayOptions(true)
	opts.limit = 3

	report, err := replay(context.Background(), opts, deps, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, replayReport{scanned: 3, replayed: 2, skipped: 1}, report)
	require.NoError(t, producer.Close())
}

func TestReplay_FromNewestStartsNearTheEnd(t *testing.T) {
	source := &stubPartitionSource{consumers: map[int32]*stubPartitionConsumer{
		0: closedPartitionConsumer(outboxDLQMessage(t, 8, "order-1"), outboxDLQMessage(t, 9, "order-2")),
	}}
	deps := replayDeps{
		offsets:  &stubOffsetClient{ranges: map[int32][2]int64{0: {0, 10}}},
		consumer: source,
	}
	opts := testReplayOptions(false)
	opts.fromNewest = true
	opts.limit = 2

	_, err := replay(context.Background(), opts, deps, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, source.offsets)
}

func TestReplay_Errors(t *testing.T) {
	opts := testReplayOptions(true)

	_, err := replay(context.Background(), opts, replayDeps{}, &bytes.Buffer{})
	require.Error(t, err)

	deps := replayDeps{offsets: &stubOffsetClient{}, consumer: &stubPartitionSource{}}
	_, err = replay(context.Background(), opts, deps, &bytes.Buffer{})
	require.ErrorContains(t, err, "producer is required")

	deps.offsets = &stubOffsetClient{partitionsErr: errors.New("boom")}
	_, err = replay(context.Background(), testReplayOptions(false), deps, &bytes.Buffer{})
	require.ErrorContains(t, err, "get partitions")
}

func TestReplay_IdleTimeoutStopsPartition(t *testing.T) {
	source := &stubPartitionSource{consumers: map[int32]*stubPartitionConsumer{
		0: {messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)},
	}}
	deps := replayDeps{
		offsets:  &stubOffsetClient{ranges: map[int32][2]int64{0: {0, 5}}},
		consumer: source,
	}
	opts := testReplayOptions(false)
	opts.idleTimeout = 20 * time.Millisecond

	report, err := replay(context.Background(), opts, deps, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, replayReport{}, report)
}

func TestDLQReplayCmd_Validation(t *testing.T) {
	t.Setenv(envKafkaBrokers, "")

	_, err := execute(t, "dlq", "replay")
	require.ErrorIs(t, err, errBrokersRequired)

	_, err = execute(t, "dlq", "replay", "--brokers", "k1:9092", "--limit", "0")
	require.ErrorContains(t, err, "limit must be > 0")
}

func TestDLQReplayCmd_UsesDependencies(t *testing.T) {
	previous := newReplayDeps
	t.Cleanup(func() { newReplayDeps = previous })

	var gotBrokers []string
	newReplayDeps = func(brokers []string, execute bool) (replayDeps, error) {
		gotBrokers = brokers
		return replayDeps{
			offsets: &stubOffsetClient{ranges: map[int32][2]int64{0: {0, 1}}},
			consumer: &stubPartitionSource{consumers: map[int32]*stubPartitionConsumer{
				0: closedPartitionConsumer(outboxDLQMessage(t, 0, "order-1")),
			}},
		}, nil
	}

	out, err := execute(t, "dlq", "replay", "--brokers", "k1:9092, k2:9092")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, gotBrokers)
	assert.Contains(t, out, "dlq replay dry-run: scanned=1 replayed=1 skipped=0")
}

func testReplayOptions(execute bool) replayOptions {
	return replayOptions{
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       defaultReplayLimit,
		execute:     execute,
		idleTimeout: time.Second,
	}
}

type stubOffsetClient struct {
	ranges        map[int32][2]int64
	partitionsErr error
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	r := s.ranges[partition]
	if marker == sarama.OffsetOldest {
		return r[0], nil
	}
	return r[1], nil
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	partitions := make([]int32, 0, len(s.ranges))
	for p := range s.ranges {
		partitions = append(partitions, p)
	}
	return partitions, nil
}

func (s *stubOffsetClient) Close() error { return nil }

type stubPartitionSource struct {
	consumers map[int32]*stubPartitionConsumer
	offsets   []int64
}

func (s *stubPartitionSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.offsets = append(s.offsets, offset)
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, errors.New("unexpected partition")
	}
	return pc, nil
}

func (s *stubPartitionSource) Close() error { return nil }

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error                             { return nil }

func closedPartitionConsumer(messages ...*sarama.ConsumerMessage) *stubPartitionConsumer {
	ch := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		ch <- msg
	}
	close(ch)
	return &stubPartitionConsumer{messages: ch, errors: make(chan *sarama.ConsumerError)}
}
