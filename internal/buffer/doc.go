// Package buffer provides thread-safe buffering for outbound Kafka messages.
//
// Encoded records are collected per category and sent as one produce
// request when a buffer fills up or the batch ends.
//
//	manager := buffer.NewManager(maxSizeBytes, maxMessages)
//	buf := manager.GetOrCreate(event.CategoryMovie)
//
//	if err := buf.Add(msg); errors.Is(err, apperrors.ErrBufferFull) {
//	    send(buf.Drain())
//	    _ = buf.Add(msg)
//	}
//
// A buffer always accepts a message when empty, so a single message larger
// than maxSizeBytes is still delivered on its own.
package buffer
