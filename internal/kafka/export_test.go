package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewTestConsumer serves msgs from memory and reports committed offsets.
func NewTestConsumer(msgs []kafka.Message, log *zap.Logger) (*Consumer, func() []int64) {
	r := &fakeReader{pending: msgs}
	c := newConsumer(r, 1, log)
	c.backoff = time.Millisecond
	return c, r.committedOffsets
}

func (c *Consumer) MaxAttempts() int { return c.maxAttempts }
