// Package sink forwards dispatched events to external systems.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/event"
)

// Writer is the subset of *kafka.Writer used by Kafka.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Record is the JSON value published for each event.
type Record struct {
	ID         string          `json:"id"`
	Kind       event.Kind      `json:"kind"`
	Channel    event.Channel   `json:"channel"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Kafka is a dispatch.Observer publishing events to a Kafka topic.
// Messages are keyed by channel so each socket's events stay ordered
// within a partition. Write errors are logged and dropped.
type Kafka struct {
	writer       Writer
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewKafka creates a sink writing to cfg.Topic on cfg.Brokers.
func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: topic is required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
	}
	return NewKafkaWithWriter(w, cfg.WriteTimeout, logger), nil
}

// NewKafkaWithWriter creates a sink over an existing writer.
func NewKafkaWithWriter(w Writer, writeTimeout time.Duration, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = config.DefaultKafkaWriteTimeout
	}
	return &Kafka{
		writer:       w,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "kafka_sink"),
	}
}

// Observe publishes ev. It blocks for at most the write timeout.
func (k *Kafka) Observe(ev event.Event) {
	msg, err := encode(ev)
	if err != nil {
		k.logger.Error("failed to encode event", "kind", ev.Kind(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Error("failed to publish event",
			"kind", ev.Kind(),
			"key", string(msg.Key),
			"error", err,
		)
	}
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func encode(ev event.Event) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal payload: %w", err)
	}

	ch := event.ChannelOf(ev.Kind())
	rec := Record{
		ID:         uuid.NewString(),
		Kind:       ev.Kind(),
		Channel:    ch,
		ReceivedAt: ev.Received(),
		Payload:    payload,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal record: %w", err)
	}

	return kafka.Message{
		Key:   []byte(ch),
		Value: value,
		Time:  rec.ReceivedAt,
	}, nil
}
