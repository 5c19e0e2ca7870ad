// Package cart keeps shopping carts outside the relational store.  A cart
// is a set of (book, quantity) lines addressed by a client-held uuid and
// forgotten after a period of inactivity.
package cart

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/iliyamo/book-store/internal/model"
)

// Store persists cart lines.  Every write refreshes the cart's expiry.
type Store interface {
	Lines(ctx context.Context, cartID string) ([]model.CartLine, error)
	Quantity(ctx context.Context, cartID string, bookID uint64) (uint32, error)
	// Add increments the quantity of a line and returns the new quantity.
	Add(ctx context.Context, cartID string, bookID uint64, qty uint32) (uint32, error)
	// Set overwrites the quantity of a line; zero removes it.
	Set(ctx context.Context, cartID string, bookID uint64, qty uint32) error
	Remove(ctx context.Context, cartID string, bookIDs ...uint64) error
	Clear(ctx context.Context, cartID string) error
}

// NewID returns a fresh cart id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether s is a usable cart id and returns its canonical
// form.
func ValidID(s string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// BuildView joins lines with catalog rows.  Lines whose book is missing
// from books are left out of the view and returned as stale so the caller
// can drop them from the store.
func BuildView(cartID string, lines []model.CartLine, books map[uint64]model.Book) (model.CartView, []uint64) {
	view := model.CartView{CartID: cartID, Items: []model.CartItemView{}}
	var stale []uint64
	for _, l := range lines {
		b, ok := books[l.BookID]
		if !ok {
			stale = append(stale, l.BookID)
			continue
		}
		view.Items = append(view.Items, model.CartItemView{
			BookID:         b.ID,
			Title:          b.Title,
			AuthorName:     b.AuthorName,
			CoverURL:       b.CoverURL,
			Quantity:       l.Quantity,
			UnitPriceCents: b.PriceCents,
			LineTotalCents: uint64(b.PriceCents) * uint64(l.Quantity),
			Stock:          b.Stock,
		})
	}
	view.ItemCount = lo.SumBy(view.Items, func(it model.CartItemView) uint64 { return uint64(it.Quantity) })
	view.SubtotalCents = lo.SumBy(view.Items, func(it model.CartItemView) uint64 { return it.LineTotalCents })
	return view, stale
}

// BookIDs returns the distinct book ids of lines.
func BookIDs(lines []model.CartLine) []uint64 {
	return lo.Uniq(lo.Map(lines, func(l model.CartLine, _ int) uint64 { return l.BookID }))
}

func sortLines(lines []model.CartLine) []model.CartLine {
	sort.Slice(lines, func(i, j int) bool { return lines[i].BookID < lines[j].BookID })
	return lines
}
