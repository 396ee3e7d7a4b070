package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrBrokerUnavailable = errors.New("kafka broker unavailable")

type Producer interface {
	SendMessage(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

// Writer is the part of kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// KafkaProducer writes through a circuit breaker. While the breaker is open
// sends fail fast and the outbox keeps the tasks for a later attempt.
type KafkaProducer struct {
	writer  Writer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewKafkaProducer(brokers []string, cfg BreakerConfig, logger *zap.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return NewKafkaProducerWithWriter(w, cfg, logger)
}

func NewKafkaProducerWithWriter(w Writer, cfg BreakerConfig, logger *zap.Logger) *KafkaProducer {
	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &KafkaProducer{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (p *KafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) State() gobreaker.State {
	return p.breaker.State()
}

func (p *KafkaProducer) Close() error {
	p.logger.Info("closing kafka producer")
	return p.writer.Close()
}

// LogProducer logs messages instead of sending them. It stands in for Kafka
// when no brokers are configured.
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	logger.Info("initialized log producer, messages will not leave the process")
	return &LogProducer{logger: logger}
}

func (p *LogProducer) SendMessage(ctx context.Context, topic string, key []byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("message produced",
		zap.String("topic", topic), zap.ByteString("key", key), zap.ByteString("value", value))
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}
