// Package publisher defines interfaces for sending records and rejects to Kafka.
package publisher

import (
	"context"

	"github.com/jittakal/logavro/pkg/event"
)

// RecordPublisher sends encoded records to their category topic.
type RecordPublisher interface {
	// Publish queues an encoded record for its category topic.
	Publish(ctx context.Context, msg event.Message) error

	// Flush sends every queued message.
	Flush(ctx context.Context) error

	// Close flushes and closes the publisher.
	Close() error
}

// RejectSink records rows that were skipped.
type RejectSink interface {
	// Reject records a skipped row with the reason it was skipped.
	Reject(ctx context.Context, rej event.Rejection) error

	// Close closes the sink and releases resources.
	Close() error
}
