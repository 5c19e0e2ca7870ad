package repository

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/iliyamo/book-store/internal/model"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.status, o.total_cents,
	o.shipping_name, o.shipping_address, o.shipping_city, o.shipping_postal_code,
	o.shipping_country, o.shipping_phone, o.created_at, o.updated_at,
	(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi WHERE oi.order_id = o.id) AS item_count`

// OrderRepo owns the orders and order_items tables, including the
// place-order procedure that decrements stock.  All timestamp fields are
// stored in UTC.
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderListQuery filters the admin order listing.
type OrderListQuery struct {
	Status   string
	UserID   uint64
	Page     int
	PageSize int
}

// lockedBook is the projection read under FOR UPDATE during checkout.
type lockedBook struct {
	ID         uint64 `db:"id"`
	Title      string `db:"title"`
	PriceCents uint32 `db:"price_cents"`
	Stock      uint32 `db:"stock"`
}

// PlaceOrder runs the checkout procedure as one transaction: the book rows
// are locked in id order, every line is checked against stock, stock is
// decremented and the order plus its items are inserted with the locked
// prices.  Lines for unknown books fail with a *LineError wrapping
// ErrNotFound; lines exceeding stock with one wrapping
// ErrInsufficientStock.  Nothing is written unless every line succeeds.
func (r *OrderRepo) PlaceOrder(ctx context.Context, userID uint64, lines []model.CartLine, ship model.ShippingInfo) (*model.Order, error) {
	qty := mergeLines(lines)
	if len(qty) == 0 {
		return nil, fmt.Errorf("place order: no items")
	}
	ids := make([]uint64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q, args, err := sqlx.In("SELECT id, title, price_cents, stock FROM books WHERE id IN (?) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	var rows []lockedBook
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	books := make(map[uint64]lockedBook, len(rows))
	for _, b := range rows {
		books[b.ID] = b
	}

	var missing, short []uint64
	for _, id := range ids {
		b, ok := books[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case b.Stock < qty[id]:
			short = append(short, id)
		}
	}
	if len(missing) > 0 {
		return nil, &LineError{Err: ErrNotFound, BookIDs: missing}
	}
	if len(short) > 0 {
		return nil, &LineError{Err: ErrInsufficientStock, BookIDs: short}
	}

	var total uint64
	items := make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		b := books[id]
		it := model.OrderItem{BookID: id, Title: b.Title, Quantity: qty[id], UnitPriceCents: b.PriceCents}
		total += uint64(it.UnitPriceCents) * uint64(it.Quantity)
		items = append(items, it)
	}
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("place order: total %d exceeds limit", total)
	}

	for _, it := range items {
		res, err := tx.ExecContext(ctx,
			"UPDATE books SET stock = stock - ? WHERE id = ? AND stock >= ?",
			it.Quantity, it.BookID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, &LineError{Err: ErrInsufficientStock, BookIDs: []uint64{it.BookID}}
		}
	}

	order := &model.Order{
		OrderNumber:  uuid.NewString(),
		UserID:       userID,
		Status:       model.OrderPending,
		TotalCents:   uint32(total),
		ShippingInfo: ship,
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (order_number, user_id, status, total_cents, shipping_name, shipping_address,
		   shipping_city, shipping_postal_code, shipping_country, shipping_phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNumber, order.UserID, order.Status, order.TotalCents, ship.Name, ship.Address,
		ship.City, ship.PostalCode, ship.Country, ship.Phone)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	order.ID = uint64(id)
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := createItemsTx(ctx, tx, items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	order.Items = items
	for _, it := range items {
		order.ItemCount += int(it.Quantity)
	}
	return order, nil
}

// createItemsTx inserts all order items with a single multi-row INSERT.
func createItemsTx(ctx context.Context, tx *sqlx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := "INSERT INTO order_items (order_id, book_id, quantity, unit_price_cents) VALUES "
	args := make([]any, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, it.OrderID, it.BookID, it.Quantity, it.UnitPriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// mergeLines sums quantities per book and drops empty lines.
func mergeLines(lines []model.CartLine) map[uint64]uint32 {
	out := make(map[uint64]uint32, len(lines))
	for _, l := range lines {
		if l.BookID == 0 || l.Quantity == 0 {
			continue
		}
		out[l.BookID] += l.Quantity
	}
	return out
}

// Get returns an order with its items.  When userID is non-zero the order
// must belong to that user; otherwise ErrNotFound is returned so callers
// cannot probe other customers' orders.
func (r *OrderRepo) Get(ctx context.Context, id, userID uint64) (*model.Order, error) {
	var o model.Order
	if err := r.db.GetContext(ctx, &o, "SELECT "+orderColumns+" FROM orders o WHERE o.id = ?", id); err != nil {
		return nil, notFound(err)
	}
	if userID != 0 && o.UserID != userID {
		return nil, ErrNotFound
	}
	o.Items = []model.OrderItem{}
	err := r.db.SelectContext(ctx, &o.Items,
		`SELECT oi.id, oi.order_id, oi.book_id, b.title, oi.quantity, oi.unit_price_cents
		 FROM order_items oi
		 JOIN books b ON b.id = oi.book_id
		 WHERE oi.order_id = ?
		 ORDER BY oi.id`, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns one page of orders, optionally filtered by status and user,
// newest first, plus the total number of matches.
func (r *OrderRepo) List(ctx context.Context, q OrderListQuery) ([]model.Order, int64, error) {
	cond := "1=1"
	args := []any{}
	if q.Status != "" {
		cond += " AND o.status = ?"
		args = append(args, q.Status)
	}
	if q.UserID != 0 {
		cond += " AND o.user_id = ?"
		args = append(args, q.UserID)
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders o WHERE "+cond, args...); err != nil {
		return nil, 0, err
	}
	out := make([]model.Order, 0, q.PageSize)
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+orderColumns+" FROM orders o WHERE "+cond+" ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?",
		argsData...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Transition moves an order to status `to` and returns the status it had
// before.  The move must be allowed by model.CanTransition and, when
// allowedFrom is given, start from one of those statuses.  When userID is
// non-zero the order must belong to that user.  Cancelling returns every
// line's quantity to stock inside the same transaction.
func (r *OrderRepo) Transition(ctx context.Context, id uint64, to string, userID uint64, allowedFrom ...string) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur struct {
		UserID uint64 `db:"user_id"`
		Status string `db:"status"`
	}
	if err := tx.GetContext(ctx, &cur, "SELECT user_id, status FROM orders WHERE id = ? FOR UPDATE", id); err != nil {
		return "", notFound(err)
	}
	if userID != 0 && cur.UserID != userID {
		return "", ErrNotFound
	}
	if !model.CanTransition(cur.Status, to) {
		return cur.Status, ErrInvalidTransition
	}
	if len(allowedFrom) > 0 && !lo.Contains(allowedFrom, cur.Status) {
		return cur.Status, ErrInvalidTransition
	}
	if to == model.OrderCancelled {
		if _, err := tx.ExecContext(ctx,
			`UPDATE books b
			 JOIN order_items oi ON oi.book_id = b.id
			 SET b.stock = b.stock + oi.quantity
			 WHERE oi.order_id = ?`, id); err != nil {
			return cur.Status, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", to, id); err != nil {
		return cur.Status, err
	}
	if err := tx.Commit(); err != nil {
		return cur.Status, err
	}
	committed = true
	return cur.Status, nil
}

// OrderStats summarises orders for the admin dashboard.
type OrderStats struct {
	ByStatus     map[string]int `json:"by_status"`
	RevenueCents uint64         `json:"revenue_cents"`
}

// Stats counts orders per status and sums the revenue of every order that
// was not cancelled.
func (r *OrderRepo) Stats(ctx context.Context) (OrderStats, error) {
	st := OrderStats{ByStatus: map[string]int{}}
	for _, s := range model.OrderStatuses() {
		st.ByStatus[s] = 0
	}
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS n FROM orders GROUP BY status"); err != nil {
		return st, err
	}
	for _, row := range rows {
		st.ByStatus[row.Status] = row.N
	}
	err := r.db.GetContext(ctx, &st.RevenueCents,
		"SELECT COALESCE(SUM(total_cents), 0) FROM orders WHERE status <> ?", model.OrderCancelled)
	return st, err
}
