package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
	block  chan struct{}
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zap.NewNop())
	p.Start(context.Background())

	assert.True(t, p.Publish([]byte("1"), []byte("a")))
	assert.True(t, p.Publish([]byte("2"), []byte("b")))
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.False(t, p.Publish([]byte("3"), []byte("c")), "publish after close must be refused")
}

func TestProducer_DropsWhenInboxFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	p := newProducer(w, 1, zap.NewNop())

	assert.True(t, p.Publish([]byte("1"), []byte("a")))
	assert.False(t, p.Publish([]byte("2"), []byte("b")))

	close(w.block)
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()
	assert.Len(t, w.msgs, 1)
}

func TestProducer_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, 4, zap.NewNop())
	p.Start(context.Background())

	assert.True(t, p.Publish([]byte("1"), []byte("a")))
	p.Close()
	p.WaitClosed()
	assert.Len(t, w.msgs, 1)
}
