package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// OrderLog appends one human-readable line per order event to a file.
type OrderLog struct {
    Path string
    mu   sync.Mutex
}

// Handle decodes a message from queue and appends its line.
func (l *OrderLog) Handle(queue string, body []byte) error {
    line, err := formatLine(queue, body)
    if err != nil {
        return err
    }
    l.mu.Lock()
    defer l.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
        return fmt.Errorf("mkdir: %w", err)
    }
    f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open order log: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write order log: %w", err)
    }
    return nil
}

func formatLine(queue string, body []byte) (string, error) {
    switch queue {
    case OrderPlacedQueue:
        var ev OrderPlacedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        items := make([]string, 0, len(ev.Items))
        for _, it := range ev.Items {
            items = append(items, fmt.Sprintf("%dx%d", it.BookID, it.Quantity))
        }
        return fmt.Sprintf("[%s] Order placed | order_id=%d | number=%s | user_id=%d | total=%d cents | items=[%s]\n",
            ev.PlacedAt, ev.OrderID, ev.OrderNumber, ev.UserID, ev.TotalCents, strings.Join(items, ",")), nil
    case OrderStatusChangedQueue:
        var ev OrderStatusChangedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Order status changed | order_id=%d | user_id=%d | %s -> %s | by=%d\n",
            ev.ChangedAt, ev.OrderID, ev.UserID, ev.From, ev.To, ev.ActorID), nil
    }
    return "", fmt.Errorf("unknown queue %q", queue)
}

// StartOrderConsumer consumes both order queues and feeds every message to
// sink.  It reconnects with exponential backoff (capped at 30s) until ctx
// is cancelled.  Messages the sink rejects are nacked without requeue.
func StartOrderConsumer(ctx context.Context, url string, sink *OrderLog, log logrus.FieldLogger) error {
    log = log.WithField("component", "order-consumer")
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.WithError(err).Warnf("dial failed; retrying in %s", backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, sink, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.WithError(err).Warn("consume loop ended; reconnecting")
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(2 * time.Second):
        }
    }
}

type delivery struct {
    queue string
    amqp.Delivery
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink *OrderLog, log logrus.FieldLogger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.WithError(err).Warn("set QoS failed")
    }

    merged := make(chan delivery)
    var wg sync.WaitGroup
    for _, q := range []string{OrderPlacedQueue, OrderStatusChangedQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        wg.Add(1)
        go func(q string, msgs <-chan amqp.Delivery) {
            defer wg.Done()
            for d := range msgs {
                select {
                case merged <- delivery{queue: q, Delivery: d}:
                case <-ctx.Done():
                    return
                }
            }
        }(q, msgs)
    }
    go func() {
        wg.Wait()
        close(merged)
    }()

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-merged:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := sink.Handle(d.queue, d.Body); err != nil {
                log.WithError(err).WithField("queue", d.queue).Error("handle message failed")
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}
