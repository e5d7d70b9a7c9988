package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// userRepo implements UserRepository.
type userRepo struct {
	pool Pool
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	defer observeDB(ctx, "users.get")()

	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, subject, email, name, created_at, last_login_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Subject, &u.Email, &u.Name, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpsertBySubject provisions or refreshes the account bound to an external
// identity subject.
func (r *userRepo) UpsertBySubject(ctx context.Context, subject, email, name string) (*User, error) {
	defer observeDB(ctx, "users.upsert_subject")()

	var u User
	err := r.pool.QueryRow(ctx, `INSERT INTO users (id, subject, email, name, last_login_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (subject) DO UPDATE SET email=EXCLUDED.email, name=EXCLUDED.name, last_login_at=NOW()
RETURNING id, subject, email, name, created_at, last_login_at`, uuid.New(), subject, email, name).
		Scan(&u.ID, &u.Subject, &u.Email, &u.Name, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", translateError(err))
	}
	return &u, nil
}
