package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/book-store/internal/model"
	"github.com/iliyamo/book-store/internal/utils"
)

const userColumns = "id,email,password_hash,role,is_active,created_at,updated_at"

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, notFound(err)
}

// CountByRole counts active users holding a role.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM users WHERE role=? AND is_active=1", role)
	return n, err
}

// EnsureAdmin creates an ADMIN account for email unless a user with that
// email already exists.  It reports whether a new account was created.
func (r *UserRepo) EnsureAdmin(ctx context.Context, email, password string, cost int) (bool, error) {
	if _, err := r.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := r.Create(ctx, email, password, model.RoleAdmin, cost); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// notFound maps sql.ErrNoRows onto ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
