package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/book-store/internal/model"
)

// BookSearchQuery defines filters & pagination for the storefront listing.
type BookSearchQuery struct {
	Genre    string
	AuthorID uint64
	Q        string
	InStock  bool
	Sort     string
	Page     int
	PageSize int
}

var bookSorts = map[string]string{
	"newest":     "b.created_at DESC, b.id DESC",
	"price_asc":  "b.price_cents ASC, b.id ASC",
	"price_desc": "b.price_cents DESC, b.id DESC",
	"title":      "b.title ASC, b.id ASC",
}

// Search filters the catalog and returns one page plus the total number of
// matching books.  Q matches title, ISBN or author name case-insensitively.
func (r *BookRepo) Search(ctx context.Context, q BookSearchQuery) ([]model.Book, int64, error) {
	where := []string{}
	args := []any{}

	if q.Genre != "" {
		where = append(where, "LOWER(b.genre) = ?")
		args = append(args, strings.ToLower(q.Genre))
	}
	if q.AuthorID != 0 {
		where = append(where, "b.author_id = ?")
		args = append(args, q.AuthorID)
	}
	if q.Q != "" {
		like := "%" + strings.ToLower(q.Q) + "%"
		where = append(where, "(LOWER(b.title) LIKE ? OR b.isbn LIKE ? OR LOWER(a.name) LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.InStock {
		where = append(where, "b.stock > 0")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM books b
		JOIN authors a ON a.id = b.author_id
		WHERE ` + cond
	if err := r.db.GetContext(ctx, &total, countSQL, args...); err != nil {
		return nil, 0, err
	}

	order, ok := bookSorts[strings.ToLower(q.Sort)]
	if !ok {
		order = bookSorts["newest"]
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	dataSQL := bookSelect + " WHERE " + cond + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), limit, offset)

	out := make([]model.Book, 0, limit)
	if err := r.db.SelectContext(ctx, &out, dataSQL, argsData...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
