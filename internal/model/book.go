package model

import "time"

// Book is a row of the `books` table.  Prices are integer cents; Stock is
// unsigned in the schema and the checkout transaction never lets it go
// negative.  AuthorName is filled by queries joining authors and is empty
// otherwise.
type Book struct {
    ID            uint64    `db:"id" json:"id"`
    ISBN          string    `db:"isbn" json:"isbn"`
    Title         string    `db:"title" json:"title"`
    AuthorID      uint64    `db:"author_id" json:"author_id"`
    AuthorName    string    `db:"author_name" json:"author_name,omitempty"`
    Genre         string    `db:"genre" json:"genre"`
    Description   *string   `db:"description" json:"description,omitempty"`
    PriceCents    uint32    `db:"price_cents" json:"price_cents"`
    Stock         uint32    `db:"stock" json:"stock"`
    CoverURL      *string   `db:"cover_url" json:"cover_url,omitempty"`
    PublishedYear *int      `db:"published_year" json:"published_year,omitempty"`
    CreatedAt     time.Time `db:"created_at" json:"created_at"`
    UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// InStock reports whether at least qty copies are available.
func (b Book) InStock(qty uint32) bool { return b.Stock >= qty }

// GenreCount is one row of the genre facet.
type GenreCount struct {
    Genre string `db:"genre" json:"genre"`
    Books int    `db:"books" json:"books"`
}
