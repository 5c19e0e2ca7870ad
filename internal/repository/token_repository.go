package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns userID if a non-revoked, non-expired token exists.
// Unknown, revoked and expired tokens all yield ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var row struct {
		UserID    uint64       `db:"user_id"`
		ExpiresAt time.Time    `db:"expires_at"`
		RevokedAt sql.NullTime `db:"revoked_at"`
	}
	err := r.DB.GetContext(ctx, &row,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash)
	if err != nil {
		return 0, notFound(err)
	}
	if row.RevokedAt.Valid || time.Now().UTC().After(row.ExpiresAt) {
		return 0, ErrNotFound
	}
	return row.UserID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// PurgeBefore deletes tokens that expired, or were revoked, before cutoff.
// It returns the number of rows removed.
func (r *TokenRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		cutoff.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
