// Package service publishes order events to RabbitMQ.  Publishing is best
// effort: callers log failures and carry on, the order itself is already
// committed.
package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/book-store/internal/queue"
)

// Publisher is what handlers depend on.
type Publisher interface {
    OrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error
    OrderStatusChanged(ctx context.Context, ev queue.OrderStatusChangedEvent) error
}

// AMQPPublisher dials the broker for every message.  Order volume is low
// enough that a pooled channel is not needed.
type AMQPPublisher struct {
    URL string
    Log logrus.FieldLogger
}

func NewAMQPPublisher(url string, log logrus.FieldLogger) *AMQPPublisher {
    return &AMQPPublisher{URL: url, Log: log.WithField("component", "publisher")}
}

// NewPublisher returns an AMQPPublisher for url, or a NopPublisher when no
// broker is configured.
func NewPublisher(url string, log logrus.FieldLogger) Publisher {
    if url == "" {
        log.Warn("no broker configured; order events are dropped")
        return NopPublisher{}
    }
    return NewAMQPPublisher(url, log)
}

func (p *AMQPPublisher) OrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error {
    return p.publish(ctx, queue.OrderPlacedQueue, ev)
}

func (p *AMQPPublisher) OrderStatusChanged(ctx context.Context, ev queue.OrderStatusChangedEvent) error {
    return p.publish(ctx, queue.OrderStatusChangedQueue, ev)
}

// publish declares the durable queue and sends body as a persistent JSON
// message through the default exchange.
func (p *AMQPPublisher) publish(ctx context.Context, queueName string, event any) error {
    log := p.Log.WithField("queue", queueName)
    body, err := json.Marshal(event)
    if err != nil {
        log.WithError(err).Error("marshal event failed")
        return err
    }
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.WithError(err).Warn("dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.WithError(err).Warn("channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        log.WithError(err).Warn("queue declare failed")
        return err
    }
    err = ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        log.WithError(err).Warn("publish failed")
    }
    return err
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) OrderPlaced(context.Context, queue.OrderPlacedEvent) error { return nil }

func (NopPublisher) OrderStatusChanged(context.Context, queue.OrderStatusChangedEvent) error {
    return nil
}
