package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/config"
	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ResultPublisher produces one message per conversion result to a Kafka topic.
// It implements pipeline.ResultPublisher.
type ResultPublisher struct {
	writer   messageWriter
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewResultPublisher creates a Kafka producer for the configured results topic.
func NewResultPublisher(cfg *config.Config, logger *slog.Logger) *ResultPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaResultsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newResultPublisher(w, logger)
}

func newResultPublisher(w messageWriter, logger *slog.Logger) *ResultPublisher {
	return &ResultPublisher{writer: w, logger: logger, attempts: 3, backoff: 200 * time.Millisecond}
}

// Publish serializes r and writes it, retrying transient failures with
// exponential backoff until attempts run out or ctx is done.
func (p *ResultPublisher) Publish(ctx context.Context, r domain.ConversionResult) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}

	backoff := p.backoff
	maxBackoff := 5 * time.Second
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= p.attempts || ctx.Err() != nil {
			return fmt.Errorf("publish result %s: %w", r.Reference, err)
		}
		p.logger.Warn("publish result failed, retrying",
			"reference", r.Reference, "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish result %s: %w", r.Reference, ctx.Err())
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func (p *ResultPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ConversionResult into a Kafka message keyed by
// the feed reference so reruns of the same station-year land on one partition.
func serializeToMessage(r domain.ConversionResult) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize conversion result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Reference),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(r.Status)},
			{Key: "processed_at", Value: []byte(r.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
