// Package queue defines the order events exchanged over RabbitMQ and the
// consumer that turns them into the order log.
package queue

// Queue names.  Both queues are durable and use the default exchange.
const (
    OrderPlacedQueue        = "order.placed"
    OrderStatusChangedQueue = "order.status_changed"
)

// OrderLine is one item of an OrderPlacedEvent.
type OrderLine struct {
    BookID         uint64 `json:"book_id"`
    Title          string `json:"title"`
    Quantity       uint32 `json:"quantity"`
    UnitPriceCents uint32 `json:"unit_price_cents"`
}

// OrderPlacedEvent is published after a checkout commits.  It carries
// enough data for consumers to log or notify without reading the database.
type OrderPlacedEvent struct {
    OrderID     uint64      `json:"order_id"`
    OrderNumber string      `json:"order_number"`
    UserID      uint64      `json:"user_id"`
    TotalCents  uint32      `json:"total_cents"`
    Items       []OrderLine `json:"items"`
    Country     string      `json:"country"`
    PlacedAt    string      `json:"placed_at"`
}

// OrderStatusChangedEvent is published whenever an order moves through
// its lifecycle, including customer cancellations.
type OrderStatusChangedEvent struct {
    OrderID   uint64 `json:"order_id"`
    UserID    uint64 `json:"user_id"`
    From      string `json:"from"`
    To        string `json:"to"`
    ActorID   uint64 `json:"actor_id"`
    ChangedAt string `json:"changed_at"`
}
