package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ammarsecurity/nexchat/internal/models"
	"github.com/ammarsecurity/nexchat/pkg/database"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns the user or nil when no row exists.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, name, gender, unique_code, avatar, is_banned, is_online, created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Gender,
		&user.UniqueCode,
		&user.Avatar,
		&user.IsBanned,
		&user.IsOnline,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// FindByCode resolves an invite code to a user. Banned users are excluded so
// they cannot be reached by code. Returns nil when no match exists.
func (r *UserRepository) FindByCode(ctx context.Context, code string) (*models.User, error) {
	query := `
		SELECT id, name, gender, unique_code, avatar, is_banned, is_online, created_at
		FROM users
		WHERE unique_code = $1 AND is_banned = FALSE
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&user.ID,
		&user.Name,
		&user.Gender,
		&user.UniqueCode,
		&user.Avatar,
		&user.IsBanned,
		&user.IsOnline,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by code: %w", err)
	}

	return user, nil
}

// SetOnlineStatus flips the persisted online flag shown on profiles.
func (r *UserRepository) SetOnlineStatus(ctx context.Context, id string, online bool) error {
	query := `UPDATE users SET is_online = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, online); err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}

	return nil
}
