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

// ConversationRepository handles database operations for conversations
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a conversation together with its member roster
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation, members []models.Member) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return apperr.Storef(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	convQuery := `
		INSERT INTO conversations (id, kind, name, avatar_url, creator_id, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, convQuery,
		conv.ID, conv.Kind, conv.Name, conv.AvatarURL, conv.CreatorID,
		conv.CreatedAt, conv.LastActivityAt,
	)
	if err != nil {
		return apperr.Storef(err, "failed to create conversation")
	}

	memberQuery := `
		INSERT INTO conversation_members (conversation_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, m := range members {
		if _, err := tx.Exec(ctx, memberQuery, m.ConversationID, m.UserID, m.Role, m.JoinedAt); err != nil {
			return apperr.Storef(err, "failed to insert member")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storef(err, "failed to commit conversation")
	}
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT id, kind, name, avatar_url, creator_id, created_at, last_activity_at
		FROM conversations
		WHERE id = $1
	`
	var conv models.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.Kind, &conv.Name, &conv.AvatarURL, &conv.CreatorID,
		&conv.CreatedAt, &conv.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("conversation %s not found", id)
		}
		return nil, apperr.Storef(err, "failed to get conversation")
	}
	return &conv, nil
}

// ListIDsForUser returns the ids of every conversation the user belongs to,
// most recently joined first
func (r *ConversationRepository) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT conversation_id
		FROM conversation_members
		WHERE user_id = $1
		ORDER BY joined_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list memberships")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Storef(err, "failed to scan membership")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read memberships")
	}
	return ids, nil
}

// ListForUser returns every conversation the user belongs to,
// most recently active first
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT c.id, c.kind, c.name, c.avatar_url, c.creator_id, c.created_at, c.last_activity_at
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.last_activity_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list conversations")
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.Kind, &conv.Name, &conv.AvatarURL, &conv.CreatorID,
			&conv.CreatedAt, &conv.LastActivityAt,
		); err != nil {
			return nil, apperr.Storef(err, "failed to scan conversation")
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read conversations")
	}
	return convs, nil
}

// Members returns the participant roster of a conversation
func (r *ConversationRepository) Members(ctx context.Context, conversationID string) ([]models.Member, error) {
	query := `
		SELECT conversation_id, user_id, role, joined_at
		FROM conversation_members
		WHERE conversation_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list members")
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, apperr.Storef(err, "failed to scan member")
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read members")
	}
	return members, nil
}

// TouchActivity bumps the conversation's last-activity timestamp
func (r *ConversationRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE conversations SET last_activity_at = GREATEST(last_activity_at, $1) WHERE id = $2`
	_, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return apperr.Storef(err, "failed to touch conversation activity")
	}
	return nil
}
