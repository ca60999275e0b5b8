package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

func testUser(id, name string) *models.User {
	return &models.User{ID: id, DisplayName: name, CreatedAt: time.Now()}
}

func newTestDirectory() (*Directory, *fakeConversationStore, *fakeMessageStore, *fakeUserStore) {
	users := newFakeUserStore(
		testUser("alice", "Alice"),
		testUser("bob", "Bob"),
		testUser("carol", "Carol"),
	)
	convs := newFakeConversationStore()
	msgs := newFakeMessageStore()
	return NewDirectory(convs, msgs, users, nil), convs, msgs, users
}

func TestResolveOrCreateIndividualDedup(t *testing.T) {
	d, convs, _, _ := newTestDirectory()
	ctx := context.Background()

	first, err := d.ResolveOrCreateIndividual(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if first.Kind != models.ConversationIndividual {
		t.Fatalf("expected individual conversation, got %s", first.Kind)
	}

	second, err := d.ResolveOrCreateIndividual(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same conversation, got %s and %s", first.ID, second.ID)
	}
	if len(convs.convs) != 1 {
		t.Errorf("expected 1 conversation in store, got %d", len(convs.convs))
	}

	members, _ := convs.Members(ctx, first.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != "alice" {
		t.Errorf("expected requester first, got %s", members[0].UserID)
	}
}

func TestResolveOrCreateIndividualSelf(t *testing.T) {
	d, _, _, _ := newTestDirectory()

	_, err := d.ResolveOrCreateIndividual(context.Background(), "alice", "alice")
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveOrCreateIndividualUnknownCounterpart(t *testing.T) {
	d, _, _, _ := newTestDirectory()

	_, err := d.ResolveOrCreateIndividual(context.Background(), "alice", "nobody")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResolveSkipsGroupConversations(t *testing.T) {
	d, convs, _, _ := newTestDirectory()
	ctx := context.Background()

	group, err := d.CreateGroup(ctx, "alice", "book club", []string{"bob"})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	individual, err := d.ResolveOrCreateIndividual(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if individual.ID == group.ID {
		t.Fatal("resolve returned the group conversation")
	}
	if len(convs.convs) != 2 {
		t.Errorf("expected 2 conversations, got %d", len(convs.convs))
	}
}

func TestCreateGroupValidation(t *testing.T) {
	d, _, _, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := d.CreateGroup(ctx, "alice", "  ", []string{"bob"}); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := d.CreateGroup(ctx, "alice", "friends", nil); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("expected validation error for empty members, got %v", err)
	}
}

func TestCreateGroupRolesAndAnnouncement(t *testing.T) {
	d, convs, msgs, _ := newTestDirectory()
	ctx := context.Background()

	// Creator listed among members must not be duplicated
	conv, err := d.CreateGroup(ctx, "alice", "friends", []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	members, _ := convs.Members(ctx, conv.ID)
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if members[0].UserID != "alice" || members[0].Role != models.RoleAdmin {
		t.Errorf("expected creator with admin role first, got %+v", members[0])
	}
	for _, m := range members[1:] {
		if m.Role != models.RoleMember {
			t.Errorf("expected ordinary role for %s, got %s", m.UserID, m.Role)
		}
	}

	history, _ := msgs.ListByConversation(ctx, conv.ID)
	if len(history) != 1 {
		t.Fatalf("expected one announcement message, got %d", len(history))
	}
	if !strings.Contains(history[0].Body, "Alice") || !strings.Contains(history[0].Body, "friends") {
		t.Errorf("unexpected announcement body: %q", history[0].Body)
	}
}

type staticPresence struct {
	online   bool
	lastSeen time.Time
}

func (p *staticPresence) Lookup(ctx context.Context, userID string) (bool, time.Time, error) {
	return p.online, p.lastSeen, nil
}

func TestListForUserAnnotations(t *testing.T) {
	users := newFakeUserStore(
		testUser("alice", "Alice"),
		testUser("bob", "Bob"),
		testUser("carol", "Carol"),
	)
	convs := newFakeConversationStore()
	msgs := newFakeMessageStore()
	lastSeen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d := NewDirectory(convs, msgs, users, &staticPresence{online: true, lastSeen: lastSeen})
	ctx := context.Background()

	older, err := d.ResolveOrCreateIndividual(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	newer, err := d.CreateGroup(ctx, "alice", "friends", []string{"carol"})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	// Make the individual chat the most recently active one
	now := time.Now()
	msg := &models.Message{
		ID: "m1", ConversationID: older.ID, SenderID: "bob",
		Body: "hi", Kind: models.MessageText, CreatedAt: now,
	}
	if err := msgs.Create(ctx, msg); err != nil {
		t.Fatalf("seed message failed: %v", err)
	}
	convs.TouchActivity(ctx, older.ID, now.Add(time.Minute))

	summaries, err := d.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	first := summaries[0]
	if first.Conversation.ID != older.ID {
		t.Fatalf("expected most recently active conversation first, got %s", first.Conversation.ID)
	}
	if first.DisplayName != "Bob" {
		t.Errorf("expected counterpart name as display name, got %q", first.DisplayName)
	}
	if first.LastMessage == nil || first.LastMessage.Body != "hi" || first.LastMessage.SenderName != "Bob" {
		t.Errorf("unexpected last message annotation: %+v", first.LastMessage)
	}
	if first.Counterpart == nil || !first.Counterpart.Online || !first.Counterpart.LastSeen.Equal(lastSeen) {
		t.Errorf("unexpected counterpart presence: %+v", first.Counterpart)
	}

	second := summaries[1]
	if second.Conversation.ID != newer.ID {
		t.Fatalf("expected group second, got %s", second.Conversation.ID)
	}
	if second.DisplayName != "friends" {
		t.Errorf("expected group name as display name, got %q", second.DisplayName)
	}
	if second.Counterpart != nil {
		t.Errorf("group summary should not carry a counterpart")
	}
	if second.LastMessage == nil || !strings.Contains(second.LastMessage.Body, "created the group") {
		t.Errorf("expected announcement as last message, got %+v", second.LastMessage)
	}
}
