// Package buffer implements message buffering for batched Kafka produce requests.
package buffer

import (
	"fmt"
	"sync"

	"github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/buffer"
	"github.com/jittakal/logavro/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*CategoryBuffer)(nil)
var _ buffer.Manager = (*Manager)(nil)

// CategoryBuffer buffers encoded messages for a single category topic.
// It enforces a message count limit and an optional byte size limit.
type CategoryBuffer struct {
	category     event.Category
	messages     []event.Message
	maxSizeBytes int64
	maxMessages  int
	currentSize  int64
	mu           sync.RWMutex
}

// New creates a new category buffer.
func New(c event.Category, maxSizeBytes int64, maxMessages int) *CategoryBuffer {
	if maxMessages < 1 {
		maxMessages = 1
	}
	return &CategoryBuffer{
		category:     c,
		messages:     make([]event.Message, 0, maxMessages),
		maxSizeBytes: maxSizeBytes,
		maxMessages:  maxMessages,
	}
}

// Add adds a message to the buffer.
func (b *CategoryBuffer) Add(msg event.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := messageSize(msg)

	if len(b.messages) >= b.maxMessages {
		return fmt.Errorf("%w: max messages (%d) reached", errors.ErrBufferFull, b.maxMessages)
	}

	// An empty buffer always accepts one message so oversized messages still go out.
	if b.maxSizeBytes > 0 && len(b.messages) > 0 && b.currentSize+size > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.messages = append(b.messages, msg)
	b.currentSize += size
	return nil
}

// Drain removes and returns all messages from the buffer.
// The returned slice is owned by the caller.
func (b *CategoryBuffer) Drain() []event.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	messages := b.messages
	b.reset()
	return messages
}

// Stats returns current buffer statistics.
func (b *CategoryBuffer) Stats() event.FileStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return event.FileStats{
		RecordCount: len(b.messages),
		SizeBytes:   b.currentSize,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *CategoryBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages) == 0
}

// Reset clears the buffer.
func (b *CategoryBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *CategoryBuffer) reset() {
	b.messages = make([]event.Message, 0, b.maxMessages)
	b.currentSize = 0
}

func messageSize(msg event.Message) int64 {
	return int64(len(msg.Key) + len(msg.Value))
}

// Manager manages buffers for the record categories.
// Buffers are created on demand.
type Manager struct {
	buffers      map[event.Category]*CategoryBuffer
	maxSizeBytes int64
	maxMessages  int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxMessages int) *Manager {
	return &Manager{
		buffers:      make(map[event.Category]*CategoryBuffer),
		maxSizeBytes: maxSizeBytes,
		maxMessages:  maxMessages,
	}
}

// GetOrCreate returns a buffer for the category, creating it if needed.
func (m *Manager) GetOrCreate(c event.Category) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[c]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[c]; exists {
		return buf
	}

	buf = New(c, m.maxSizeBytes, m.maxMessages)
	m.buffers[c] = buf
	return buf
}

// DrainAll drains every buffer in category order.
func (m *Manager) DrainAll() []event.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []event.Message
	for _, c := range event.Categories() {
		if buf, ok := m.buffers[c]; ok {
			out = append(out, buf.Drain()...)
		}
	}
	return out
}
