package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned when registering with an address that already
// has an account.
var ErrEmailTaken = errors.New("repo: email already registered")

// User is an account row. PasswordHash is an argon2id encoded hash.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken stores the SHA-256 digest of an issued refresh token.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Users provides access to the users and refresh_tokens tables.
type Users struct {
	DB DBTX
}

const userColumns = `id, name, email, password_hash, roles, created_at, updated_at`

// Create inserts a user account.
func (r Users) Create(ctx context.Context, name, email, passwordHash string) (User, error) {
	row := r.DB.QueryRow(ctx,
		`INSERT INTO users (id, name, email, password_hash, roles)
		 VALUES ($1, $2, $3, $4, '{customer}')
		 RETURNING `+userColumns,
		uuid.New(), name, email, passwordHash)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// GetByEmail loads a user by email address.
func (r Users) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, mapNoRows(err)
	}
	return u, nil
}

// GetByID loads a user by identifier.
func (r Users) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, mapNoRows(err)
	}
	return u, nil
}

// CreateRefreshToken stores the digest of a newly issued refresh token.
func (r Users) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, tokenHash, expiresAt)
	return err
}

// GetRefreshToken loads an unrevoked, unexpired refresh token by digest.
func (r Users) GetRefreshToken(ctx context.Context, tokenHash string, now time.Time) (RefreshToken, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		 FROM refresh_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`,
		tokenHash, now)
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt); err != nil {
		return RefreshToken{}, mapNoRows(err)
	}
	return t, nil
}

// RevokeRefreshToken marks a refresh token as revoked.
func (r Users) RevokeRefreshToken(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, now)
	return err
}
