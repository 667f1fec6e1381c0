package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id::text, name, username, COALESCE(email, ''), COALESCE(timezone, ''), updated_at`

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.Timezone, &u.UpdatedAt)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.Timezone, &u.UpdatedAt)
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

// Upsert applies a user event in tx. A version older than the stored one is
// ignored, so reordered events cannot roll a profile back.
func (r *UserRepository) Upsert(ctx context.Context, tx pgx.Tx, u model.User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, name, username, email, timezone, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at
		WHERE users.updated_at <= EXCLUDED.updated_at
	`, u.ID, u.Name, u.Username, u.Email, u.Timezone, u.UpdatedAt)
	return err
}
