package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/libs/outbox"
)

var (
	ErrNotFound      = errors.New("storage: user not found")
	ErrEmailTaken    = errors.New("storage: email already registered")
	ErrUsernameTaken = errors.New("storage: username already taken")
)

type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Timezone     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewUserRepository(pool *db.Pool, outboxRepo *outbox.Repository) *UserRepository {
	return &UserRepository{pool: pool, outbox: outboxRepo}
}

// Create inserts user and the event built from the stored row in one
// transaction.
func (r *UserRepository) Create(ctx context.Context, user *User, event func(User) (outbox.Event, error)) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (id, name, username, email, password_hash, timezone)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
			RETURNING created_at, updated_at
		`, user.ID, user.Name, user.Username, user.Email, user.PasswordHash, user.Timezone).Scan(&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		evt, err := event(*user)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

const userColumns = `id::text, name, username, email, password_hash, COALESCE(timezone, ''), created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapErr(err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateProfile locks the row, applies fn and writes name, timezone and
// the event fn returns.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, fn func(u *User) error, event func(User) (outbox.Event, error)) (User, error) {
	var out User
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&u); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE users
			SET name = $2, timezone = NULLIF($3, ''), updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, u.ID, u.Name, u.Timezone).Scan(&u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		evt, err := event(u)
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

func mapErr(err error) error {
	switch {
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err, "users_email_lower_key"):
		return ErrEmailTaken
	case db.IsUniqueViolation(err, "users_username_key"):
		return ErrUsernameTaken
	default:
		return err
	}
}
