// Package amqp publishes and consumes plan events over RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"risparmi/internal/core"
	applog "risparmi/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishPlanCompleted publishes a plan.completed event for p.
func (c *Client) PublishPlanCompleted(ctx context.Context, p core.Plan) error {
	body, err := NewPlanCompletedMessage(p).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Type:         PlanCompletedType,
			MessageId:    p.ID,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).InfoContext(ctx, "Published plan event",
		applog.FieldPlanID, p.ID,
		applog.FieldOperation, applog.OpPublish,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// Record implements services.Recorder.
func (c *Client) Record(ctx context.Context, p core.Plan) error {
	return c.PublishPlanCompleted(ctx, p)
}

// ConsumePlans delivers plan.completed events to handler until ctx ends,
// running at most concurrency handlers at once. Malformed messages are
// dropped; handler failures are requeued.
func (c *Client) ConsumePlans(ctx context.Context, concurrency int, handler func(context.Context, *PlanCompletedMessage) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if err := c.channel.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	logger.InfoContext(ctx, "Started consuming plan events",
		"queue", c.queueName,
		"concurrency", concurrency,
		applog.FieldOperation, applog.OpConsume)

	// Handlers never fail the group; their outcome becomes an ack or a nack.
	var g errgroup.Group
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			g.Go(func() error {
				settle(delivery, handleDelivery(ctx, delivery.Body, handler))
				return nil
			})
		}
	}
}

// acknowledger is the part of amqp091.Delivery that settles a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(d acknowledger, a action) {
	var err error
	switch a {
	case ack:
		err = d.Ack(false)
	case requeue:
		err = d.Nack(false, true)
	case drop:
		err = d.Nack(false, false)
	}
	if err != nil {
		slog.Error("Failed to settle message", "error", err)
	}
}

type action int

const (
	ack action = iota
	requeue
	drop
)

func handleDelivery(ctx context.Context, body []byte, handler func(context.Context, *PlanCompletedMessage) error) action {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	msg, err := PlanCompletedMessageFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		return drop
	}

	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle message", "error", err, applog.FieldPlanID, msg.ID)
		return requeue
	}

	logger.InfoContext(ctx, "Processed plan event", applog.FieldPlanID, msg.ID)
	return ack
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
