// Package memory contains in-memory bus implementations for tests.
package memory

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Reader serves queued messages and records commits.
type Reader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

// NewReader returns a Reader preloaded with messages.
func NewReader(msgs ...kafka.Message) *Reader {
	return &Reader{queue: append([]kafka.Message(nil), msgs...)}
}

// Push appends a message to the queue.
func (r *Reader) Push(msg kafka.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, msg)
}

// FetchMessage pops the next queued message, or blocks on the context when
// the queue is empty (matching kafka.Reader's behavior with no traffic).
func (r *Reader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

// CommitMessages records the committed messages.
func (r *Reader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

// Committed returns all committed messages.
func (r *Reader) Committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kafka.Message, len(r.committed))
	copy(out, r.committed)
	return out
}

// Close marks the reader closed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Writer stores written messages for inspection.
type Writer struct {
	mu       sync.Mutex
	messages []kafka.Message

	Err error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteMessages records the messages, or fails when Err is set.
func (w *Writer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

// Messages returns the recorded writes.
func (w *Writer) Messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]kafka.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Close is a no-op.
func (w *Writer) Close() error { return nil }
