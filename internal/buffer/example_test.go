package buffer_test

import (
	"errors"
	"fmt"

	"github.com/jittakal/logavro/internal/buffer"
	apperrors "github.com/jittakal/logavro/internal/errors"
	"github.com/jittakal/logavro/pkg/event"
)

func Example_categoryBuffer() {
	buf := buffer.New(event.CategoryMovie, 0, 2)

	for _, key := range []string{"1", "2", "3"} {
		err := buf.Add(event.Message{Category: event.CategoryMovie, Key: key})
		if errors.Is(err, apperrors.ErrBufferFull) {
			fmt.Println("flushing", len(buf.Drain()))
			_ = buf.Add(event.Message{Category: event.CategoryMovie, Key: key})
		}
	}
	fmt.Println("pending", buf.Stats().RecordCount)

	// Output:
	// flushing 2
	// pending 1
}
