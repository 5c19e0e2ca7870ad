package model

import "time"

// Order statuses.  The allowed moves between them are listed in
// orderTransitions.
const (
    OrderPending    = "PENDING"
    OrderProcessing = "PROCESSING"
    OrderShipped    = "SHIPPED"
    OrderDelivered  = "DELIVERED"
    OrderCancelled  = "CANCELLED"
)

var orderTransitions = map[string][]string{
    OrderPending:    {OrderProcessing, OrderCancelled},
    OrderProcessing: {OrderShipped, OrderCancelled},
    OrderShipped:    {OrderDelivered},
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []string {
    return []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
    for _, s := range orderTransitions[from] {
        if s == to {
            return true
        }
    }
    return false
}

// ShippingInfo is the delivery address captured at checkout.
type ShippingInfo struct {
    Name       string `db:"shipping_name" json:"name"`
    Address    string `db:"shipping_address" json:"address"`
    City       string `db:"shipping_city" json:"city"`
    PostalCode string `db:"shipping_postal_code" json:"postal_code"`
    Country    string `db:"shipping_country" json:"country"`
    Phone      string `db:"shipping_phone" json:"phone"`
}

// Order is a persisted checkout record.  TotalCents always equals the sum
// of its items' UnitPriceCents × Quantity.
type Order struct {
    ID          uint64    `db:"id" json:"id"`
    OrderNumber string    `db:"order_number" json:"order_number"`
    UserID      uint64    `db:"user_id" json:"user_id"`
    Status      string    `db:"status" json:"status"`
    TotalCents  uint32    `db:"total_cents" json:"total_cents"`
    ItemCount   int       `db:"item_count" json:"item_count"`
    ShippingInfo          `json:"shipping"`
    CreatedAt   time.Time `db:"created_at" json:"created_at"`
    UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
    Items       []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is one line of an order.  UnitPriceCents snapshots the book
// price at checkout time.
type OrderItem struct {
    ID             uint64 `db:"id" json:"id"`
    OrderID        uint64 `db:"order_id" json:"order_id"`
    BookID         uint64 `db:"book_id" json:"book_id"`
    Title          string `db:"title" json:"title,omitempty"`
    Quantity       uint32 `db:"quantity" json:"quantity"`
    UnitPriceCents uint32 `db:"unit_price_cents" json:"unit_price_cents"`
}

// LineTotal is the price of the line.
func (i OrderItem) LineTotal() uint32 { return i.UnitPriceCents * i.Quantity }
