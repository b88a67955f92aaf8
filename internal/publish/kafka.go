package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// MessageWriter is the part of kafka-go's Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Envelope is the message value for one aggregation result
type Envelope struct {
	Service     string                `json:"service"`
	Context     model.DisasterContext `json:"context"`
	FromCache   bool                  `json:"fromCache"`
	PublishedAt time.Time             `json:"publishedAt"`
	Records     any                   `json:"records"`
}

// Publisher hands result sets to a Kafka topic, one message per call
type Publisher struct {
	writer MessageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewKafkaPublisher creates a producer for the configured topic. Messages are
// keyed by context fingerprint so repeated results for one disaster land on
// the same partition.
func NewKafkaPublisher(cfg model.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return NewPublisher(w, nil, logger), nil
}

// NewPublisher wraps an existing writer. A nil clock uses real time.
func NewPublisher(w MessageWriter, clock clockwork.Clock, logger *slog.Logger) *Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, clock: clock, logger: logger}
}

// Publish writes one result set. Empty results are skipped.
func (p *Publisher) Publish(ctx context.Context, service string, dctx model.DisasterContext, records any, count int, fromCache bool) error {
	if count == 0 {
		return nil
	}
	msg, err := p.message(Envelope{
		Service:     service,
		Context:     dctx,
		FromCache:   fromCache,
		PublishedAt: p.clock.Now().UTC(),
		Records:     records,
	})
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", service, err)
	}
	p.logger.Debug("results published", "service", service, "records", count, "context", dctx.Fingerprint())
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) message(env Envelope) (kafkago.Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s results: %w", env.Service, err)
	}
	return kafkago.Message{
		Key:   []byte(env.Context.Fingerprint()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "service", Value: []byte(env.Service)},
			{Key: "published_at", Value: []byte(env.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
