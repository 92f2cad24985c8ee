package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/jittakal/logavro/internal/buffer"
	"github.com/jittakal/logavro/internal/errors"
	pkgbuffer "github.com/jittakal/logavro/pkg/buffer"
	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/publisher"
)

// Ensure implementation satisfies interface at compile time.
var _ publisher.RecordPublisher = (*Publisher)(nil)

// Topics maps each category to its destination topic.
type Topics map[event.Category]string

// PublisherConfig contains record publisher settings.
type PublisherConfig struct {
	Topics           Topics
	BatchMaxMessages int
	BatchMaxBytes    int64
	RunID            string
}

// MetricsCollector receives publish outcomes.
type MetricsCollector interface {
	AddMessagesPublished(topic, status string, n int)
}

// Publisher batches encoded records per category and sends them with a sync producer.
type Publisher struct {
	producer sarama.SyncProducer
	config   PublisherConfig
	buffers  pkgbuffer.Manager
	metrics  MetricsCollector
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

// NewPublisher creates a publisher over an existing producer.
// The publisher owns the producer and closes it on Close.
func NewPublisher(producer sarama.SyncProducer, cfg PublisherConfig, metrics MetricsCollector, logger *slog.Logger) (*Publisher, error) {
	for _, c := range event.Categories() {
		if cfg.Topics[c] == "" {
			return nil, fmt.Errorf("no topic configured for category %s", c.Slug())
		}
	}
	if cfg.BatchMaxMessages < 1 {
		cfg.BatchMaxMessages = 500
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	return &Publisher{
		producer: producer,
		config:   cfg,
		buffers:  buffer.NewManager(cfg.BatchMaxBytes, cfg.BatchMaxMessages),
		metrics:  metrics,
		logger:   logger.With("component", "kafka_publisher", "run_id", cfg.RunID),
	}, nil
}

// Publish queues a message; a full category buffer is sent before the message is added.
func (p *Publisher) Publish(ctx context.Context, msg event.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ErrPublisherClosed
	}
	if !msg.Category.Valid() {
		return &errors.UnknownCategoryError{Tag: msg.Category.String()}
	}

	buf := p.buffers.GetOrCreate(msg.Category)
	err := buf.Add(msg)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, errors.ErrBufferFull) {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.send(buf.Drain()); err != nil {
		return err
	}
	return buf.Add(msg)
}

// Flush sends every buffered message.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.send(p.buffers.DrainAll())
}

func (p *Publisher) send(messages []event.Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	batch := make([]*sarama.ProducerMessage, 0, len(messages))
	for _, msg := range messages {
		batch = append(batch, p.producerMessage(msg, now))
	}

	counts := make(map[string]int)
	for _, m := range batch {
		counts[m.Topic]++
	}

	err := p.producer.SendMessages(batch)
	if err == nil {
		for topic, n := range counts {
			p.recordMetric(topic, "success", n)
		}
		p.logger.Debug("published batch", "messages", len(batch))
		return nil
	}

	var perrs sarama.ProducerErrors
	if stderrors.As(err, &perrs) {
		failed := make(map[string]int)
		for _, pe := range perrs {
			failed[pe.Msg.Topic]++
		}
		for topic, n := range counts {
			p.recordMetric(topic, "success", n-failed[topic])
			p.recordMetric(topic, "failure", failed[topic])
		}
		p.logger.Error("failed to publish messages",
			"failed", len(perrs),
			"messages", len(batch),
			"error", perrs[0].Err,
		)
		return fmt.Errorf("failed to publish %d of %d messages: %w", len(perrs), len(batch), perrs[0].Err)
	}

	for topic, n := range counts {
		p.recordMetric(topic, "failure", n)
	}
	p.logger.Error("failed to publish batch", "messages", len(batch), "error", err)
	return fmt.Errorf("failed to publish batch: %w", err)
}

func (p *Publisher) producerMessage(msg event.Message, ts time.Time) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic: p.config.Topics[msg.Category],
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("category"), Value: []byte(msg.Category.Slug())},
			{Key: []byte("content_type"), Value: []byte("avro/binary")},
			{Key: []byte("run_id"), Value: []byte(p.config.RunID)},
		},
		Timestamp: ts,
	}
}

func (p *Publisher) recordMetric(topic, status string, n int) {
	if p.metrics != nil && n > 0 {
		p.metrics.AddMessagesPublished(topic, status, n)
	}
}

// Close flushes buffered messages and closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	flushErr := p.send(p.buffers.DrainAll())
	if err := p.producer.Close(); err != nil {
		p.logger.Error("error closing producer", "error", err)
		return stderrors.Join(flushErr, err)
	}

	p.logger.Info("kafka publisher closed")
	return flushErr
}
