package mq

import (
	"context"
	"fmt"
	"time"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quarry/internal/logger"
)

// DefaultSendTimeout bounds a single synchronous send
const DefaultSendTimeout = 5 * time.Second

// SendOutcome is the completion signal of an asynchronous send
type SendOutcome struct {
	MsgID string
	Err   error
}

// Producer wraps the RocketMQ producer client with the small surface the
// harness tests need. Send errors are surfaced to the caller unretried
// beyond the client's own retry policy; retry decisions belong downstream.
type Producer struct {
	client rocketmq.Producer
	group  string
	logger zerolog.Logger
}

// NewProducer creates a producer against the given registry endpoint.
// An empty group gets a unique generated name so parallel suites do not
// collide.
func NewProducer(nameServerAddr, group string) (*Producer, error) {
	if group == "" {
		group = fmt.Sprintf("quarry-producer-%s", uuid.NewString()[:8])
	}

	client, err := rocketmq.NewProducer(
		producer.WithNameServer([]string{nameServerAddr}),
		producer.WithGroupName(group),
		producer.WithRetry(2),
		producer.WithSendMsgTimeout(DefaultSendTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Producer{
		client: client,
		group:  group,
		logger: logger.New(),
	}, nil
}

// Start connects the producer to the cluster
func (p *Producer) Start() error {
	if err := p.client.Start(); err != nil {
		return fmt.Errorf("failed to start producer: %w", err)
	}
	p.logger.Debug().Str("group", p.group).Msg("Producer started")
	return nil
}

// Shutdown releases client resources
func (p *Producer) Shutdown() error {
	if err := p.client.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down producer: %w", err)
	}
	return nil
}

// Group returns the producer group name
func (p *Producer) Group() string {
	return p.group
}

// SendSync sends one message and blocks for the broker acknowledgement
func (p *Producer) SendSync(ctx context.Context, topic, tag, body string) (string, error) {
	return p.send(ctx, buildMessage(topic, tag, "", body))
}

// SendSyncWithKey sends one message carrying a business key for later
// lookup. An empty key gets a generated one.
func (p *Producer) SendSyncWithKey(ctx context.Context, topic, tag, key, body string) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	return p.send(ctx, buildMessage(topic, tag, key, body))
}

// SendAsync dispatches the message and returns a channel that receives
// exactly one completion outcome. Abandoning the channel stops the wait
// but does not cancel the in-flight send.
func (p *Producer) SendAsync(ctx context.Context, topic, tag, body string) (<-chan SendOutcome, error) {
	done := make(chan SendOutcome, 1)

	err := p.client.SendAsync(ctx,
		func(ctx context.Context, result *primitive.SendResult, err error) {
			outcome := SendOutcome{Err: err}
			if err == nil && result != nil {
				outcome.MsgID = result.MsgID
			}
			done <- outcome
		},
		buildMessage(topic, tag, "", body))
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch async send: %w", err)
	}

	return done, nil
}

func (p *Producer) send(ctx context.Context, msg *primitive.Message) (string, error) {
	result, err := p.client.SendSync(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", msg.Topic, err)
	}
	if result.Status != primitive.SendOK {
		return "", fmt.Errorf("send to %s returned status %v", msg.Topic, result.Status)
	}

	p.logger.Debug().
		Str("topic", msg.Topic).
		Str("msg_id", result.MsgID).
		Msg("Message sent")

	return result.MsgID, nil
}

func buildMessage(topic, tag, key, body string) *primitive.Message {
	msg := primitive.NewMessage(topic, []byte(body))
	if tag != "" {
		msg.WithTag(tag)
	}
	if key != "" {
		msg.WithKeys([]string{key})
	}
	return msg
}
