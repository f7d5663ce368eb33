package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	publishTimeout = 3 * time.Second
	handleTimeout  = 15 * time.Second
)

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, msgType string, body any) error
}

// UserEventPublisher sends user lifecycle events to the broker.
type UserEventPublisher struct {
	pub JSONPublisher
}

func NewUserEventPublisher(pub JSONPublisher) *UserEventPublisher {
	return &UserEventPublisher{pub: pub}
}

var _ application.EventPublisher = (*UserEventPublisher)(nil)

func (p *UserEventPublisher) PublishUserEvent(ctx context.Context, ev application.UserEvent) error {
	c, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.pub.PublishJSON(c, string(ev.Type), ev)
}

// UserEventHandler applies one decoded event, e.g. to the search index.
type UserEventHandler interface {
	Apply(ctx context.Context, ev application.UserEvent) error
}

// UserEventConsumer drains a delivery channel into a handler. Undecodable
// messages are dropped; handler failures are requeued once.
type UserEventConsumer struct {
	Handler UserEventHandler
	Logger  logrus.FieldLogger
}

func NewUserEventConsumer(h UserEventHandler, logger logrus.FieldLogger) *UserEventConsumer {
	return &UserEventConsumer{Handler: h, Logger: logger}
}

// Run blocks until ctx is done or the channel closes.
func (c *UserEventConsumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *UserEventConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var ev application.UserEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		helpers.LogError(c.Logger, "bad user event", err, logrus.Fields{"type": msg.Type})
		_ = msg.Nack(false, false)
		return
	}
	if ev.Type == "" {
		ev.Type = application.UserEventType(msg.Type)
	}

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if err := c.Handler.Apply(hctx, ev); err != nil {
		helpers.LogError(c.Logger, "apply user event failed", err, logrus.Fields{"type": ev.Type, "user_id": ev.UserID})
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}
