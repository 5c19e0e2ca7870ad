package model

import "time"

// Roles understood by RequireRole.  Self-registration always produces a
// CUSTOMER; ADMIN accounts are bootstrapped from configuration.
const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  PasswordHash never leaves the repository layer in
// responses because its json tag is "-".
type User struct {
    ID           uint64    `db:"id" json:"id"`
    Email        string    `db:"email" json:"email"`
    PasswordHash string    `db:"password_hash" json:"-"`
    Role         string    `db:"role" json:"role"`
    IsActive     bool      `db:"is_active" json:"is_active"`
    CreatedAt    time.Time `db:"created_at" json:"created_at"`
    UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
    ID        uint64     `db:"id"`
    UserID    uint64     `db:"user_id"`
    TokenHash string     `db:"token_hash"`
    ExpiresAt time.Time  `db:"expires_at"`
    RevokedAt *time.Time `db:"revoked_at"`
    CreatedAt time.Time  `db:"created_at"`
}

// Profile holds the customer's contact and default shipping details.  It
// shares its primary key with users.
type Profile struct {
    UserID      uint64    `db:"user_id" json:"user_id"`
    FullName    string    `db:"full_name" json:"full_name"`
    Phone       string    `db:"phone" json:"phone"`
    AddressLine string    `db:"address_line" json:"address_line"`
    City        string    `db:"city" json:"city"`
    PostalCode  string    `db:"postal_code" json:"postal_code"`
    Country     string    `db:"country" json:"country"`
    UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
