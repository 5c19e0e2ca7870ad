package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-store/internal/model"
)

// bookSelect joins the author name onto every book row.
const bookSelect = `SELECT b.id, b.isbn, b.title, b.author_id, a.name AS author_name, b.genre,
	b.description, b.price_cents, b.stock, b.cover_url, b.published_year, b.created_at, b.updated_at
	FROM books b
	JOIN authors a ON a.id = b.author_id`

// BookRepo provides CRUD, stock and search queries over the books table.
type BookRepo struct {
	db *sqlx.DB
}

// NewBookRepo returns a new BookRepo bound to the given database.
func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *BookRepo) DB() *sqlx.DB { return r.db }

// Create inserts a book and reloads it with its author name.  A duplicate
// ISBN yields ErrConflict and an unknown author ErrNotFound.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO books (isbn, title, author_id, genre, description, price_cents, stock, cover_url, published_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ISBN, b.Title, b.AuthorID, b.Genre, b.Description, b.PriceCents, b.Stock, b.CoverURL, b.PublishedYear)
	if err != nil {
		return mapWriteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

// GetByID returns one book with its author name or ErrNotFound.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	var b model.Book
	if err := r.db.GetContext(ctx, &b, bookSelect+" WHERE b.id = ?", id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// GetByIDs returns the books among ids that exist, keyed by id.
func (r *BookRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Book, error) {
	out := make(map[uint64]model.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(bookSelect+" WHERE b.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var rows []model.Book
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, b := range rows {
		out[b.ID] = b
	}
	return out, nil
}

// ListByAuthor returns the books of one author, newest first.
func (r *BookRepo) ListByAuthor(ctx context.Context, authorID uint64) ([]model.Book, error) {
	out := []model.Book{}
	err := r.db.SelectContext(ctx, &out, bookSelect+" WHERE b.author_id = ? ORDER BY b.created_at DESC, b.id DESC", authorID)
	return out, err
}

// Update overwrites the editable columns of a book.  Stock is managed via
// AdjustStock and the cover via SetCover, so neither is touched here.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE books SET isbn = ?, title = ?, author_id = ?, genre = ?, description = ?,
		   price_cents = ?, published_year = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		b.ISBN, b.Title, b.AuthorID, b.Genre, b.Description, b.PriceCents, b.PublishedYear, b.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	updated, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	*b = *updated
	return nil
}

// Delete removes a book.  Books that appear on any order stay for the
// order history and yield ErrConflict.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	var lines int
	if err := r.db.GetContext(ctx, &lines, "SELECT COUNT(*) FROM order_items WHERE book_id = ?", id); err != nil {
		return err
	}
	if lines > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock adds delta (which may be negative) to a book's stock and
// returns the new level.  A change that would go below zero leaves the row
// untouched and returns ErrInsufficientStock.
func (r *BookRepo) AdjustStock(ctx context.Context, id uint64, delta int) (uint32, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var stock uint32
	if err := tx.GetContext(ctx, &stock, "SELECT stock FROM books WHERE id = ? FOR UPDATE", id); err != nil {
		return 0, notFound(err)
	}
	next := int64(stock) + int64(delta)
	if next < 0 {
		return stock, ErrInsufficientStock
	}
	if _, err := tx.ExecContext(ctx, "UPDATE books SET stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", next, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint32(next), nil
}

// SetCover stores the public URL of a book's cover image.
func (r *BookRepo) SetCover(ctx context.Context, id uint64, url string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE books SET cover_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", url, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Genres returns every genre with the number of books in it.
func (r *BookRepo) Genres(ctx context.Context) ([]model.GenreCount, error) {
	out := []model.GenreCount{}
	err := r.db.SelectContext(ctx, &out, "SELECT genre, COUNT(*) AS books FROM books GROUP BY genre ORDER BY genre")
	return out, err
}

// LowStock lists books whose stock is at or below level, emptiest first.
func (r *BookRepo) LowStock(ctx context.Context, level int) ([]model.Book, error) {
	out := []model.Book{}
	err := r.db.SelectContext(ctx, &out, bookSelect+" WHERE b.stock <= ? ORDER BY b.stock, b.id", level)
	return out, err
}

// Count returns the number of books.
func (r *BookRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM books")
	return n, err
}

// UpsertByISBN inserts the book or refreshes the catalog fields of the book
// sharing its ISBN.  Stock is only set on insert.  Used by the seeder.
func (r *BookRepo) UpsertByISBN(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (isbn, title, author_id, genre, description, price_cents, stock, cover_url, published_year)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE title = VALUES(title), author_id = VALUES(author_id), genre = VALUES(genre),
		   description = VALUES(description), price_cents = VALUES(price_cents),
		   published_year = VALUES(published_year)`,
		b.ISBN, b.Title, b.AuthorID, b.Genre, b.Description, b.PriceCents, b.Stock, b.CoverURL, b.PublishedYear)
	return mapWriteErr(err)
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return ErrConflict
	case isMissingParent(err):
		return ErrNotFound
	}
	return err
}
