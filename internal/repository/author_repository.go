// Package repository contains data access logic separated from HTTP handlers.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-store/internal/model"
)

const authorColumns = "id, name, slug, bio, photo_url, created_at, updated_at"

// AuthorRepo encapsulates all database queries related to authors.
type AuthorRepo struct {
	db *sqlx.DB
}

// NewAuthorRepo constructs an AuthorRepo with the provided DB handle.
func NewAuthorRepo(db *sqlx.DB) *AuthorRepo {
	return &AuthorRepo{db: db}
}

// Create inserts a new author.  On success the ID and timestamp fields are
// populated from a follow-up SELECT.  A slug collision yields ErrConflict.
func (r *AuthorRepo) Create(ctx context.Context, a *model.Author) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO authors (name, slug, bio, photo_url) VALUES (?, ?, ?, ?)",
		a.Name, a.Slug, a.Bio, a.PhotoURL)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// GetByID fetches an author by id or returns ErrNotFound.
func (r *AuthorRepo) GetByID(ctx context.Context, id uint64) (*model.Author, error) {
	var a model.Author
	if err := r.db.GetContext(ctx, &a, "SELECT "+authorColumns+" FROM authors WHERE id = ?", id); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// GetBySlug fetches an author by slug or returns ErrNotFound.
func (r *AuthorRepo) GetBySlug(ctx context.Context, slug string) (*model.Author, error) {
	var a model.Author
	if err := r.db.GetContext(ctx, &a, "SELECT "+authorColumns+" FROM authors WHERE slug = ?", slug); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// List returns every author ordered by name.
func (r *AuthorRepo) List(ctx context.Context) ([]model.Author, error) {
	out := []model.Author{}
	err := r.db.SelectContext(ctx, &out, "SELECT "+authorColumns+" FROM authors ORDER BY name, id")
	return out, err
}

// Update overwrites name, slug, bio and photo_url of an author.
func (r *AuthorRepo) Update(ctx context.Context, a *model.Author) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE authors SET name = ?, slug = ?, bio = ?, photo_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, a.Name, a.Slug, a.Bio, a.PhotoURL, a.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	// MySQL reports 0 affected rows for a no-op update too, so existence
	// is decided by the reload.
	updated, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *updated
	return nil
}

// Delete removes an author.  Authors that still have books cannot be
// deleted and yield ErrConflict.
func (r *AuthorRepo) Delete(ctx context.Context, id uint64) error {
	var books int
	if err := r.db.GetContext(ctx, &books, "SELECT COUNT(*) FROM books WHERE author_id = ?", id); err != nil {
		return err
	}
	if books > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM authors WHERE id = ?", id)
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

// UpsertBySlug inserts the author or updates name/bio/photo of the author
// sharing its slug, then reloads it.  Used by the catalog seeder.
func (r *AuthorRepo) UpsertBySlug(ctx context.Context, a *model.Author) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authors (name, slug, bio, photo_url) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE name = VALUES(name), bio = VALUES(bio), photo_url = VALUES(photo_url)`,
		a.Name, a.Slug, a.Bio, a.PhotoURL)
	if err != nil {
		return err
	}
	got, err := r.GetBySlug(ctx, a.Slug)
	if err != nil {
		return err
	}
	*a = *got
	return nil
}

// Count returns the number of authors.
func (r *AuthorRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM authors")
	return n, err
}
