package repository

import (
	"context"
	"errors"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, display_name, avatar_url, push_token, online, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.DisplayName, user.AvatarURL, user.PushToken,
		user.Online, user.LastSeen, user.CreatedAt,
	)
	if err != nil {
		return apperr.Storef(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, display_name, avatar_url, push_token, online, last_seen, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.DisplayName, &user.AvatarURL, &user.PushToken,
		&user.Online, &user.LastSeen, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("user %s not found", id)
		}
		return nil, apperr.Storef(err, "failed to get user")
	}
	return &user, nil
}

// GetByIDs retrieves multiple users in one query
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	query := `
		SELECT id, display_name, avatar_url, push_token, online, last_seen, created_at
		FROM users
		WHERE id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperr.Storef(err, "failed to get users")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID, &user.DisplayName, &user.AvatarURL, &user.PushToken,
			&user.Online, &user.LastSeen, &user.CreatedAt,
		); err != nil {
			return nil, apperr.Storef(err, "failed to scan user")
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read users")
	}
	return users, nil
}

// UpdatePresence writes the online flag and last-seen timestamp.
// last_seen never goes backwards, even if the caller's clock does.
func (r *UserRepository) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	query := `UPDATE users SET online = $1, last_seen = GREATEST(last_seen, $2) WHERE id = $3`
	_, err := r.db.Exec(ctx, query, online, lastSeen, userID)
	if err != nil {
		return apperr.Storef(err, "failed to update presence")
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return apperr.Storef(err, "failed to update push token")
	}
	return nil
}
