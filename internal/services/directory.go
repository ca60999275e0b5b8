package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PresenceLookup reads a user's live online/last-seen state
type PresenceLookup interface {
	Lookup(ctx context.Context, userID string) (online bool, lastSeen time.Time, err error)
}

// Directory resolves and creates conversations
type Directory struct {
	convs    ConversationStore
	msgs     MessageStore
	users    UserStore
	presence PresenceLookup
	now      func() time.Time
}

// NewDirectory creates a new conversation directory
func NewDirectory(convs ConversationStore, msgs MessageStore, users UserStore, presence PresenceLookup) *Directory {
	return &Directory{
		convs:    convs,
		msgs:     msgs,
		users:    users,
		presence: presence,
		now:      time.Now,
	}
}

// ResolveOrCreateIndividual returns the one-to-one conversation between the
// two users, creating it if none exists. The dedup is a read-then-write with
// no transactional isolation: two concurrent calls for the same pair may each
// create a conversation. Sequential calls always converge on the first match.
func (d *Directory) ResolveOrCreateIndividual(ctx context.Context, requesterID, otherID string) (*models.Conversation, error) {
	if requesterID == otherID {
		return nil, apperr.Validationf("an individual conversation needs two distinct users")
	}

	ids, err := d.convs.ListIDsForUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		conv, err := d.convs.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if conv.Kind != models.ConversationIndividual {
			continue
		}
		members, err := d.convs.Members(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.UserID == otherID {
				return conv, nil
			}
		}
	}

	// No match: make sure the counterpart exists before creating
	if _, err := d.users.GetByID(ctx, otherID); err != nil {
		return nil, err
	}

	now := d.now()
	conv := &models.Conversation{
		ID:             uuid.New().String(),
		Kind:           models.ConversationIndividual,
		CreatorID:      requesterID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	// Requester first, counterpart second
	members := []models.Member{
		{ConversationID: conv.ID, UserID: requesterID, Role: models.RoleMember, JoinedAt: now},
		{ConversationID: conv.ID, UserID: otherID, Role: models.RoleMember, JoinedAt: now},
	}
	if err := d.convs.Create(ctx, conv, members); err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation. The creator gets the admin role
// and a system message announcing the group is appended.
func (d *Directory) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("group name is required")
	}
	if len(memberIDs) == 0 {
		return nil, apperr.Validationf("group needs at least one member besides the creator")
	}

	creator, err := d.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	now := d.now()
	conv := &models.Conversation{
		ID:             uuid.New().String(),
		Kind:           models.ConversationGroup,
		Name:           name,
		CreatorID:      creatorID,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	members := []models.Member{
		{ConversationID: conv.ID, UserID: creatorID, Role: models.RoleAdmin, JoinedAt: now},
	}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		members = append(members, models.Member{
			ConversationID: conv.ID, UserID: id, Role: models.RoleMember, JoinedAt: now,
		})
	}

	if err := d.convs.Create(ctx, conv, members); err != nil {
		return nil, err
	}

	// Announce the group. The conversation already exists at this point, so
	// a failed announcement is logged rather than surfaced.
	announcement := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       creatorID,
		Body:           fmt.Sprintf("%s created the group %q", creator.DisplayName, name),
		Kind:           models.MessageText,
		CreatedAt:      now,
	}
	if err := d.msgs.Create(ctx, announcement); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Failed to write group announcement")
	}

	return conv, nil
}

// MessagePreview is the most recent message shown on a conversation summary
type MessagePreview struct {
	MessageID  string             `json:"message_id"`
	Body       string             `json:"body"`
	Kind       models.MessageKind `json:"kind"`
	SenderID   string             `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	SentAt     time.Time          `json:"sent_at"`
}

// Counterpart is the other participant of an individual conversation with
// their live presence
type Counterpart struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen"`
}

// ConversationSummary is a conversation annotated for listing
type ConversationSummary struct {
	Conversation *models.Conversation `json:"conversation"`
	DisplayName  string               `json:"display_name"`
	AvatarURL    string               `json:"avatar_url,omitempty"`
	LastMessage  *MessagePreview      `json:"last_message,omitempty"`
	Counterpart  *Counterpart         `json:"counterpart,omitempty"`
}

// ListForUser returns the user's conversations, most recently active first,
// each annotated with its latest message and, for individual conversations,
// the counterpart's identity and live presence.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	convs, err := d.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*ConversationSummary, 0, len(convs))
	userIDs := make(map[string]struct{})

	type pending struct {
		summary       *ConversationSummary
		counterpartID string
		last          *models.Message
	}
	var pendings []pending

	for _, conv := range convs {
		summary := &ConversationSummary{
			Conversation: conv,
			DisplayName:  conv.Name,
			AvatarURL:    conv.AvatarURL,
		}

		last, err := d.msgs.LastByConversation(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			userIDs[last.SenderID] = struct{}{}
		}

		counterpartID := ""
		if conv.Kind == models.ConversationIndividual {
			members, err := d.convs.Members(ctx, conv.ID)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if m.UserID != userID {
					counterpartID = m.UserID
					break
				}
			}
			if counterpartID != "" {
				userIDs[counterpartID] = struct{}{}
			}
		}

		pendings = append(pendings, pending{summary: summary, counterpartID: counterpartID, last: last})
		summaries = append(summaries, summary)
	}

	usersByID, err := d.fetchUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, p := range pendings {
		if p.last != nil {
			preview := &MessagePreview{
				MessageID: p.last.ID,
				Body:      p.last.Body,
				Kind:      p.last.Kind,
				SenderID:  p.last.SenderID,
				SentAt:    p.last.CreatedAt,
			}
			if sender, ok := usersByID[p.last.SenderID]; ok {
				preview.SenderName = sender.DisplayName
			}
			p.summary.LastMessage = preview
		}

		if p.counterpartID != "" {
			counterpart := &Counterpart{UserID: p.counterpartID}
			if u, ok := usersByID[p.counterpartID]; ok {
				counterpart.DisplayName = u.DisplayName
				counterpart.AvatarURL = u.AvatarURL
				counterpart.Online = u.Online
				counterpart.LastSeen = u.LastSeen
				p.summary.DisplayName = u.DisplayName
				p.summary.AvatarURL = u.AvatarURL
			}
			if d.presence != nil {
				if online, lastSeen, err := d.presence.Lookup(ctx, p.counterpartID); err == nil {
					counterpart.Online = online
					counterpart.LastSeen = lastSeen
				}
			}
			p.summary.Counterpart = counterpart
		}
	}

	return summaries, nil
}

func (d *Directory) fetchUsers(ctx context.Context, ids map[string]struct{}) (map[string]*models.User, error) {
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	users, err := d.users.GetByIDs(ctx, list)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}
