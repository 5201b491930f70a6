package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultKafkaWriteTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON, keyed by staff ID so one member's
// history stays on a single partition.
type KafkaSink struct {
	w       MessageWriter
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

// NewKafkaWriter builds a hash-balanced writer for the audit topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(w MessageWriter, topic string, l *zap.Logger) *KafkaSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &KafkaSink{
		w:       w,
		topic:   topic,
		timeout: defaultKafkaWriteTimeout,
		log:     l.With(zap.String("component", "audit.kafka"), zap.String("topic", topic)),
	}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.w == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.log.Error("audit marshal failed", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(event.StaffID), Value: value}
	if err := s.w.WriteMessages(writeCtx, msg); err != nil {
		s.log.Error("kafka write failed", zap.String("event", event.EventType), zap.Error(err))
		return
	}
	s.log.Debug("audit published", zap.String("event", event.EventType), zap.Int("value_len", len(value)))
}

func (s *KafkaSink) Close() error {
	if s == nil || s.w == nil {
		return nil
	}
	return s.w.Close()
}
