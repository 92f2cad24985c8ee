package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
	"github.com/jittakal/logavro/pkg/publisher"
)

// Ensure implementation satisfies interface at compile time.
var _ publisher.RejectSink = (*DLQPublisher)(nil)

// DLQEvent represents a rejected row published to the dead letter queue.
type DLQEvent struct {
	Row              int       `json:"row"`
	Type             string    `json:"type"`
	LogEntry         string    `json:"log_entry"`
	FailureReason    string    `json:"failure_reason"`
	Error            string    `json:"error,omitempty"`
	FailureTimestamp time.Time `json:"failure_timestamp"`
	RunID            string    `json:"run_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled bool
	Topic   string
	RunID   string
}

// ReportCollector receives DLQ outcomes.
type ReportCollector interface {
	IncRejects(sink, status string)
}

// DLQPublisher publishes rejected rows to a dead letter topic.
type DLQPublisher struct {
	producer sarama.SyncProducer
	config   DLQConfig
	metrics  ReportCollector
	logger   *slog.Logger
	mu       sync.RWMutex
	closed   bool
	ownsProd bool
}

// NewDLQPublisher creates a DLQ publisher over a producer.
// When owned is true the producer is closed together with the publisher.
func NewDLQPublisher(producer sarama.SyncProducer, owned bool, cfg DLQConfig, metrics ReportCollector, logger *slog.Logger) (*DLQPublisher, error) {
	if cfg.Enabled && cfg.Topic == "" {
		return nil, fmt.Errorf("dlq topic is required when the dlq is enabled")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	logger = logger.With("component", "dlq", "run_id", cfg.RunID)
	if !cfg.Enabled {
		logger.Info("DLQ is disabled")
	}

	return &DLQPublisher{
		producer: producer,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
		ownsProd: owned,
	}, nil
}

// Reject publishes a rejected row to the DLQ.
func (p *DLQPublisher) Reject(ctx context.Context, rej event.Rejection) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrPublisherClosed
	}

	if !p.config.Enabled {
		p.logger.Debug("DLQ disabled, skipping publish")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dlqEvent := DLQEvent{
		Row:              rej.Row.Number,
		Type:             rej.Row.Type,
		LogEntry:         rej.Row.LogEntry,
		FailureReason:    rej.Reason,
		FailureTimestamp: time.Now().UTC(),
		RunID:            p.config.RunID,
	}
	if rej.Err != nil {
		dlqEvent.Error = rej.Err.Error()
	}

	data, err := json.Marshal(dlqEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.Topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%s-%d", p.config.RunID, rej.Row.Number)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(rej.Reason)},
			{Key: []byte("original_type"), Value: []byte(rej.Row.Type)},
			{Key: []byte("run_id"), Value: []byte(p.config.RunID)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.record("failure")
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", p.config.Topic,
			"row", rej.Row.Number,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}
	p.record("success")

	p.logger.Debug("published row to DLQ",
		"dlq_topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"row", rej.Row.Number,
		"reason", rej.Reason,
	)
	return nil
}

func (p *DLQPublisher) record(status string) {
	if p.metrics != nil {
		p.metrics.IncRejects("kafka", status)
	}
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.ownsProd && p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}
