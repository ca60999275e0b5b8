package services

import (
	"context"
	"io"
	"time"

	"messenger-backend/internal/models"
)

// The engine talks to the durable store through these interfaces.
// The pgx repositories implement them in production; tests substitute
// in-memory fakes.

// UserStore is the users collection
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// ConversationStore is the conversations collection plus its member roster
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation, members []models.Member) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	Members(ctx context.Context, conversationID string) ([]models.Member, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// MessageStore is the messages collection
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	LastByConversation(ctx context.Context, conversationID string) (*models.Message, error)
	UpdateStarred(ctx context.Context, id string, starred bool) error
	Delete(ctx context.Context, id string) error
}

// StoryStore is the stories collection plus its view records
type StoryStore interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id string) (*models.Story, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.Story, error)
	CreateView(ctx context.Context, view *models.StoryView) error
	ViewExists(ctx context.Context, storyID, viewerID string) (bool, error)
	ListViewsForStories(ctx context.Context, storyIDs []string) (map[string][]models.StoryView, error)
}

// CallStore is the call_records collection, read-only for this engine
type CallStore interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.CallRecord, error)
}

// Uploader is the external upload collaborator: it stores a blob under a
// destination key and returns a publicly retrievable URL
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// PresenceStore caches live presence next to the durable users collection
type PresenceStore interface {
	Set(ctx context.Context, userID string, online bool, lastSeen time.Time) error
	Get(ctx context.Context, userID string) (online bool, lastSeen time.Time, ok bool, err error)
}

// Notifier delivers best-effort push notifications. Failures are logged by
// implementations, never surfaced to the sending flow.
type Notifier interface {
	MessagePosted(recipient *models.User, sender *models.User, msg *models.Message)
}
