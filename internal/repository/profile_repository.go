package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-store/internal/model"
)

// ProfileRepo reads and upserts rows of the profiles table.
type ProfileRepo struct{ db *sqlx.DB }

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Get returns the profile of userID.  A user who never saved a profile gets
// an empty one rather than ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, userID uint64) (model.Profile, error) {
	var p model.Profile
	err := r.db.GetContext(ctx, &p,
		`SELECT user_id, full_name, phone, address_line, city, postal_code, country, updated_at
		 FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return model.Profile{UserID: userID}, nil
		}
		return model.Profile{}, err
	}
	return p, nil
}

// Upsert inserts or replaces the profile row for p.UserID.
func (r *ProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO profiles (user_id, full_name, phone, address_line, city, postal_code, country)
		 VALUES (:user_id, :full_name, :phone, :address_line, :city, :postal_code, :country)
		 ON DUPLICATE KEY UPDATE
		   full_name = VALUES(full_name), phone = VALUES(phone), address_line = VALUES(address_line),
		   city = VALUES(city), postal_code = VALUES(postal_code), country = VALUES(country)`, p)
	return err
}
