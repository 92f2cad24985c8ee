// Package buffer defines the batching contract used before messages are produced.
package buffer

import (
	"github.com/jittakal/logavro/pkg/event"
)

// Buffer holds pending messages of one category and is safe for concurrent use.
type Buffer interface {
	// Add appends msg, or fails with errors.ErrBufferFull when a limit is reached.
	Add(msg event.Message) error
	// Drain hands the pending messages to the caller and empties the buffer.
	Drain() []event.Message
	// Stats reports the pending message count and their key plus value bytes.
	Stats() event.FileStats
	IsEmpty() bool
	// Reset discards pending messages.
	Reset()
}

// Manager owns one Buffer per category.
type Manager interface {
	GetOrCreate(c event.Category) Buffer
	// DrainAll drains every buffer, in event.Categories order.
	DrainAll() []event.Message
}
