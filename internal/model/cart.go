package model

// CartLine is a (book, quantity) pair as held by the cart store.
type CartLine struct {
    BookID   uint64 `json:"book_id"`
    Quantity uint32 `json:"quantity"`
}

// CartItemView is a cart line joined with the current catalog data.
// Totals are 64-bit so large quantities of expensive books cannot wrap.
type CartItemView struct {
    BookID         uint64  `json:"book_id"`
    Title          string  `json:"title"`
    AuthorName     string  `json:"author_name"`
    CoverURL       *string `json:"cover_url,omitempty"`
    Quantity       uint32  `json:"quantity"`
    UnitPriceCents uint32  `json:"unit_price_cents"`
    LineTotalCents uint64  `json:"line_total_cents"`
    Stock          uint32  `json:"stock"`
}

// CartView is the response body of GET /v1/cart.
type CartView struct {
    CartID        string         `json:"cart_id"`
    Items         []CartItemView `json:"items"`
    ItemCount     uint64         `json:"item_count"`
    SubtotalCents uint64         `json:"subtotal_cents"`
}
