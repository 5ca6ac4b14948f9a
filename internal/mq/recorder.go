package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quarry/internal/logger"
)

// TagAll subscribes to every tag of a topic
const TagAll = "*"

// Recorder is a push consumer that records every delivered message body.
// The client library delivers on its own goroutine pool, so the recorded
// list is safe for concurrent writers; tests drain it from one goroutine.
type Recorder struct {
	client rocketmq.PushConsumer
	topic  string
	group  string
	logger zerolog.Logger

	mutex    sync.Mutex
	messages []string
	latch    *Latch
}

// NewRecorder creates a recorder subscribed to (topic, group, selector).
// An empty selector means all tags; an empty group gets a generated name.
func NewRecorder(nameServerAddr, topic, group, selector string) (*Recorder, error) {
	if group == "" {
		group = fmt.Sprintf("quarry-consumer-%s", uuid.NewString()[:8])
	}
	if selector == "" {
		selector = TagAll
	}

	client, err := rocketmq.NewPushConsumer(
		consumer.WithNameServer([]string{nameServerAddr}),
		consumer.WithGroupName(group),
		consumer.WithConsumerModel(consumer.Clustering),
		consumer.WithConsumeFromWhere(consumer.ConsumeFromFirstOffset),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	r := &Recorder{
		client: client,
		topic:  topic,
		group:  group,
		logger: logger.New(),
	}

	err = client.Subscribe(topic,
		consumer.MessageSelector{Type: consumer.TAG, Expression: selector},
		r.onMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	return r, nil
}

// Start begins consuming
func (r *Recorder) Start() error {
	if err := r.client.Start(); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	r.logger.Debug().
		Str("topic", r.topic).
		Str("group", r.group).
		Msg("Recorder started")
	return nil
}

// Shutdown unsubscribes and releases client resources
func (r *Recorder) Shutdown() error {
	if err := r.client.Unsubscribe(r.topic); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to unsubscribe recorder")
	}
	if err := r.client.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down consumer: %w", err)
	}
	return nil
}

func (r *Recorder) onMessages(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	r.mutex.Lock()
	for _, msg := range msgs {
		body := string(msg.Body)
		r.messages = append(r.messages, body)
		if r.latch != nil {
			r.latch.countDown()
		}
		r.logger.Debug().
			Str("topic", msg.Topic).
			Str("msg_id", msg.MsgId).
			Str("body", body).
			Msg("Message received")
	}
	r.mutex.Unlock()
	return consumer.ConsumeSuccess, nil
}

// Record appends a message body as if it had been delivered. Exposed for
// tests of the latch accounting that run without a live broker.
func (r *Recorder) Record(body string) {
	r.onMessages(context.Background(), &primitive.MessageExt{
		Message: primitive.Message{Topic: r.topic, Body: []byte(body)},
	})
}

// Expect arms a latch that counts down once per delivered message
func (r *Recorder) Expect(n int) *Latch {
	latch := newLatch(n)
	r.mutex.Lock()
	r.latch = latch
	r.mutex.Unlock()
	return latch
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Count returns the number of recorded messages
func (r *Recorder) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.messages)
}

// Clear drops recorded messages and disarms any latch
func (r *Recorder) Clear() {
	r.mutex.Lock()
	r.messages = nil
	r.latch = nil
	r.mutex.Unlock()
}

// Latch is a countdown completion signal for awaited deliveries. Waiting
// past the timeout simply stops waiting; deliveries keep being recorded.
type Latch struct {
	mutex     sync.Mutex
	remaining int
	delivered int
	done      chan struct{}
}

func newLatch(n int) *Latch {
	l := &Latch{remaining: n, done: make(chan struct{})}
	if n <= 0 {
		close(l.done)
	}
	return l
}

func (l *Latch) countDown() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.delivered++
	if l.remaining == 0 {
		return
	}
	l.remaining--
	if l.remaining == 0 {
		close(l.done)
	}
}

// Wait blocks until the full expected count arrived or the timeout
// elapsed. Partial delivery within the bound is a failed wait: callers
// that can tolerate it must use WaitAtLeast explicitly.
func (l *Latch) Wait(timeout time.Duration) bool {
	select {
	case <-l.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WaitAtLeast is the soft variant: it reports whether at least n messages
// arrived before the full count or the timeout, whichever came first.
func (l *Latch) WaitAtLeast(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return l.Delivered() >= n
		case <-deadline:
			return l.Delivered() >= n
		case <-ticker.C:
			if l.Delivered() >= n {
				return true
			}
		}
	}
}

// Delivered returns how many countdowns have happened
func (l *Latch) Delivered() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.delivered
}
