package model

import "time"

// Author is a row of the `authors` table.  Slug is derived from Name and
// is unique; it is what the seed tool uses to upsert authors.
type Author struct {
    ID        uint64    `db:"id" json:"id"`
    Name      string    `db:"name" json:"name"`
    Slug      string    `db:"slug" json:"slug"`
    Bio       *string   `db:"bio" json:"bio,omitempty"`
    PhotoURL  *string   `db:"photo_url" json:"photo_url,omitempty"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
    UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
