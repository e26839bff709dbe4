package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

const (
	envKafkaBrokers    = "ORDERDESK_KAFKA_BROKERS"
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

var errBrokersRequired = errors.New("kafka brokers are required (--brokers or " + envKafkaBrokers + ")")

type replayOptions struct {
	brokers     string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (o replayOptions) validate() error {
	switch {
	case strings.TrimSpace(o.sourceTopic) == "":
		return errors.New("source-topic is required")
	case strings.TrimSpace(o.targetTopic) == "":
		return errors.New("target-topic is required")
	case o.limit <= 0:
		return errors.New("limit must be > 0")
	case o.idleTimeout <= 0:
		return errors.New("idle-timeout must be > 0")
	}
	return nil
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	return a.consumer.Close()
}

// replayDeps — подключения к Kafka; producer nil в dry-run.
type replayDeps struct {
	offsets  offsetClient
	consumer partitionSource
	producer replayProducer
}

func (d replayDeps) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	if d.offsets != nil {
		_ = d.offsets.Close()
	}
}

var newReplayDeps = func(brokers []string, execute bool) (replayDeps, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return replayDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return replayDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := replayDeps{offsets: client, consumer: saramaConsumerAdapter{consumer: consumer}}
	if !execute {
		return deps, nil
	}

	producerCfg := sarama.NewConfig()
	producerCfg.Producer.RequiredAcks = sarama.WaitForAll
	producerCfg.Producer.Retry.Max = 5
	producerCfg.Producer.Return.Successes = true
	producerCfg.Producer.Idempotent = true
	producerCfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, producerCfg)
	if err != nil {
		deps.close()
		return replayDeps{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}

func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay the dead letter queue",
	}
	cmd.AddCommand(newDLQReplayCmd())
	return cmd
}

func newDLQReplayCmd() *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Republish DLQ messages to the order events topic (dry-run unless --execute)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw := opts.brokers
			if strings.TrimSpace(raw) == "" {
				raw = os.Getenv(envKafkaBrokers)
			}
			brokers := app.ParseBrokers(raw)
			if len(brokers) == 0 {
				return errBrokersRequired
			}
			if err := opts.validate(); err != nil {
				return err
			}

			deps, err := newReplayDeps(brokers, opts.execute)
			if err != nil {
				return err
			}
			defer deps.close()

			report, err := replay(cmd.Context(), opts, deps, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("dlq replay failed: %w", err)
			}
			mode := "dry-run"
			if opts.execute {
				mode = "execute"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dlq replay %s: scanned=%d replayed=%d skipped=%d\n", mode, report.scanned, report.replayed, report.skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.brokers, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	cmd.Flags().StringVar(&opts.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	cmd.Flags().StringVar(&opts.targetTopic, "target-topic", kafka.TopicOrderEvents, "topic for replayed outbox events")
	cmd.Flags().IntVar(&opts.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	cmd.Flags().BoolVar(&opts.execute, "execute", false, "publish messages; default is dry-run")
	cmd.Flags().BoolVar(&opts.fromNewest, "from-newest", false, "scan the latest messages of each partition")
	cmd.Flags().DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	return cmd
}

type replayReport struct {
	scanned  int
	replayed int
	skipped  int
}

func (r *replayReport) add(other replayReport) {
	r.scanned += other.scanned
	r.replayed += other.replayed
	r.skipped += other.skipped
}

// replay проходит партиции source-топика по возрастанию номера, пока не наберёт limit сообщений.
func replay(ctx context.Context, opts replayOptions, deps replayDeps, out io.Writer) (replayReport, error) {
	var report replayReport
	if deps.offsets == nil || deps.consumer == nil {
		return report, errors.New("kafka client and consumer are required")
	}
	if opts.execute && deps.producer == nil {
		return report, errors.New("producer is required in execute mode")
	}

	partitions, err := deps.offsets.Partitions(opts.sourceTopic)
	if err != nil {
		return report, fmt.Errorf("get partitions for topic %s: %w", opts.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if report.scanned >= opts.limit {
			break
		}
		stats, err := replayPartition(ctx, opts, deps, partition, opts.limit-report.scanned, out)
		report.add(stats)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func replayPartition(ctx context.Context, opts replayOptions, deps replayDeps, partition int32, limit int, out io.Writer) (replayReport, error) {
	var stats replayReport

	oldest, err := deps.offsets.GetOffset(opts.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := deps.offsets.GetOffset(opts.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if opts.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	pc, err := deps.consumer.ConsumePartition(opts.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(opts.idleTimeout)
	defer idle.Stop()

	for stats.scanned < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(opts.idleTimeout)
			stats.scanned++

			candidate, ok, err := extractReplay(msg, opts.targetTopic)
			switch {
			case err != nil:
				stats.skipped++
				fmt.Fprintf(out, "skip partition=%d offset=%d: %v\n", msg.Partition, msg.Offset, err)
			case !ok:
				stats.skipped++
			case opts.execute:
				if err := publishReplay(deps.producer, candidate); err != nil {
					return stats, fmt.Errorf("publish replay message: %w", err)
				}
				stats.replayed++
			default:
				fmt.Fprintf(out, "candidate partition=%d offset=%d topic=%s key=%s\n", msg.Partition, msg.Offset, candidate.topic, candidate.key)
				stats.replayed++
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

type replayMessage struct {
	topic string
	key   string
	value []byte
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// consumerDLQRecord пишет consumer, когда сигнал не удалось обработать.
type consumerDLQRecord struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

// outboxDLQRecord пишет outbox worker после исчерпания попыток публикации.
type outboxDLQRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// extractReplay восстанавливает исходное сообщение из записи DLQ.
// ok == false без ошибки означает запись неизвестного формата.
func extractReplay(msg *sarama.ConsumerMessage, targetTopic string) (replayMessage, bool, error) {
	var record consumerDLQRecord
	if err := json.Unmarshal(msg.Value, &record); err == nil && record.OriginalValue != "" {
		topic := strings.TrimSpace(record.OriginalTopic)
		if topic == "" {
			topic = targetTopic
		}
		return replayMessage{topic: topic, key: record.OriginalKey, value: []byte(record.OriginalValue)}, true, nil
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}

	var failed outboxDLQRecord
	if err := json.Unmarshal(envelope.Payload, &failed); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(failed.Payload) == 0 {
		return replayMessage{}, false, errors.New("outbox dlq payload does not contain original event payload")
	}

	restored := kafka.Envelope{
		ID:            firstNonEmpty(failed.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(failed.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(failed.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(failed.EventType, envelope.EventType),
		Payload:       failed.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(restored)
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayMessage{
		topic: targetTopic,
		key:   firstNonEmpty(restored.AggregateID, restored.ID),
		value: encoded,
	}, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
