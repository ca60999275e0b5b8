package repository

import (
	"context"
	"errors"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, conversation_id, sender_id, body, kind,
	attachment_url, attachment_name, attachment_size,
	reply_to_id, forwarded, starred, created_at
`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var attURL, attName *string
	var attSize *int64
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.Kind,
		&attURL, &attName, &attSize,
		&msg.ReplyToID, &msg.Forwarded, &msg.Starred, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if attURL != nil {
		msg.Attachment = &models.Attachment{URL: *attURL}
		if attName != nil {
			msg.Attachment.FileName = *attName
		}
		if attSize != nil {
			msg.Attachment.Size = *attSize
		}
	}
	return &msg, nil
}

// Create creates a new message
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, body, kind,
			attachment_url, attachment_name, attachment_size,
			reply_to_id, forwarded, starred, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var attURL, attName *string
	var attSize *int64
	if msg.Attachment != nil {
		attURL = &msg.Attachment.URL
		attName = &msg.Attachment.FileName
		attSize = &msg.Attachment.Size
	}
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.Kind,
		attURL, attName, attSize,
		msg.ReplyToID, msg.Forwarded, msg.Starred, msg.CreatedAt,
	)
	if err != nil {
		return apperr.Storef(err, "failed to create message")
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("message %s not found", id)
		}
		return nil, apperr.Storef(err, "failed to get message")
	}
	return msg, nil
}

// ListByConversation retrieves all messages of a conversation in append order
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list messages")
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Storef(err, "failed to scan message")
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read messages")
	}
	return msgs, nil
}

// LastByConversation retrieves the most recent message of a conversation,
// or nil if the conversation has none
func (r *MessageRepository) LastByConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT 1`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storef(err, "failed to get last message")
	}
	return msg, nil
}

// UpdateStarred flips the starred flag of a message
func (r *MessageRepository) UpdateStarred(ctx context.Context, id string, starred bool) error {
	query := `UPDATE messages SET starred = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, starred, id)
	if err != nil {
		return apperr.Storef(err, "failed to update starred flag")
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFoundf("message %s not found", id)
	}
	return nil
}

// Delete removes a message
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM messages WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return apperr.Storef(err, "failed to delete message")
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFoundf("message %s not found", id)
	}
	return nil
}
