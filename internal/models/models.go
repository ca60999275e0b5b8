package models

import "time"

// ConversationKind distinguishes one-to-one chats from group chats
type ConversationKind string

const (
	ConversationIndividual ConversationKind = "individual"
	ConversationGroup      ConversationKind = "group"
)

// MemberRole is a participant's role inside a conversation
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// MessageKind classifies a message's content
type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageVideo    MessageKind = "video"
	MessageAudio    MessageKind = "audio"
	MessageDocument MessageKind = "document"
)

// StoryKind classifies a story's media
type StoryKind string

const (
	StoryImage StoryKind = "image"
	StoryVideo StoryKind = "video"
)

// CallKind distinguishes voice calls from video calls
type CallKind string

const (
	CallVoice CallKind = "voice"
	CallVideo CallKind = "video"
)

// CallOutcome is the terminal state of a call
type CallOutcome string

const (
	CallMissed   CallOutcome = "missed"
	CallAnswered CallOutcome = "answered"
	CallDeclined CallOutcome = "declined"
)

// User represents a user in the system
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	PushToken   *string   `json:"push_token,omitempty"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

// Conversation represents an individual or group chat
type Conversation struct {
	ID             string           `json:"id"`
	Kind           ConversationKind `json:"kind"`
	Name           string           `json:"name,omitempty"`
	AvatarURL      string           `json:"avatar_url,omitempty"`
	CreatorID      string           `json:"creator_id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

// Member is a row in a conversation's participant roster
type Member struct {
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Role           MemberRole `json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// Attachment is an uploaded file referenced by a message
type Attachment struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
}

// Message represents a message inside a conversation
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	Body           string      `json:"body"`
	Kind           MessageKind `json:"kind"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	ReplyToID      *string     `json:"reply_to_id,omitempty"`
	Forwarded      bool        `json:"forwarded"`
	Starred        bool        `json:"starred"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Story represents an ephemeral media post with a fixed TTL
type Story struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	MediaURL  string    `json:"media_url"`
	Kind      StoryKind `json:"kind"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the story is still visible at the given time.
// Expiry is evaluated at query time; expired stories may still exist in storage.
func (s *Story) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// StoryView records that a viewer has seen a story; at most one per (story, viewer)
type StoryView struct {
	StoryID  string    `json:"story_id"`
	ViewerID string    `json:"viewer_id"`
	ViewedAt time.Time `json:"viewed_at"`
}

// CallRecord is a call history entry, created by the call-signaling service
type CallRecord struct {
	ID              string      `json:"id"`
	CallerID        string      `json:"caller_id"`
	ReceiverID      string      `json:"receiver_id"`
	Kind            CallKind    `json:"kind"`
	Outcome         CallOutcome `json:"outcome"`
	DurationSeconds int         `json:"duration_seconds"`
	StartedAt       time.Time   `json:"started_at"`
}
