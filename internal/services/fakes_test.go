package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

// In-memory stand-ins for the durable store collaborator.

type fakeUserStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	presenceErr error
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user %s not found", id)
	}
	return u, nil
}

func (s *fakeUserStore) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) UpdatePresence(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presenceErr != nil {
		return s.presenceErr
	}
	u, ok := s.users[userID]
	if !ok {
		return apperr.NotFoundf("user %s not found", userID)
	}
	u.Online = online
	if lastSeen.After(u.LastSeen) {
		u.LastSeen = lastSeen
	}
	return nil
}

func (s *fakeUserStore) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.PushToken = pushToken
	}
	return nil
}

type fakeConversationStore struct {
	mu      sync.Mutex
	convs   map[string]*models.Conversation
	members map[string][]models.Member
	order   []string // creation order
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		convs:   make(map[string]*models.Conversation),
		members: make(map[string][]models.Member),
	}
}

func (s *fakeConversationStore) Create(ctx context.Context, conv *models.Conversation, members []models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = conv
	s.members[conv.ID] = members
	s.order = append(s.order, conv.ID)
	return nil
}

func (s *fakeConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, apperr.NotFoundf("conversation %s not found", id)
	}
	return conv, nil
}

func (s *fakeConversationStore) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	// newest membership first
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		for _, m := range s.members[id] {
			if m.UserID == userID {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (s *fakeConversationStore) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	ids, _ := s.ListIDsForUser(ctx, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Conversation
	for _, id := range ids {
		out = append(out, s.convs[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (s *fakeConversationStore) Members(ctx context.Context, conversationID string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[conversationID], nil
}

func (s *fakeConversationStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[id]; ok && at.After(conv.LastActivityAt) {
		conv.LastActivityAt = at
	}
	return nil
}

type fakeMessageStore struct {
	mu         sync.Mutex
	msgs       []*models.Message
	failCreate error
	failDelete error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{}
}

func (s *fakeMessageStore) Create(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	clone := *msg
	s.msgs = append(s.msgs, &clone)
	return nil
}

func (s *fakeMessageStore) GetByID(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperr.NotFoundf("message %s not found", id)
}

func (s *fakeMessageStore) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *fakeMessageStore) LastByConversation(ctx context.Context, conversationID string) (*models.Message, error) {
	msgs, _ := s.ListByConversation(ctx, conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[len(msgs)-1], nil
}

func (s *fakeMessageStore) UpdateStarred(ctx context.Context, id string, starred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			m.Starred = starred
			return nil
		}
	}
	return apperr.NotFoundf("message %s not found", id)
}

func (s *fakeMessageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return nil
		}
	}
	return apperr.NotFoundf("message %s not found", id)
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type fakeStoryStore struct {
	mu      sync.Mutex
	stories map[string]*models.Story
	order   []string
	views   []models.StoryView
}

func newFakeStoryStore() *fakeStoryStore {
	return &fakeStoryStore{stories: make(map[string]*models.Story)}
}

func (s *fakeStoryStore) Create(ctx context.Context, story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story
	s.order = append(s.order, story.ID)
	return nil
}

func (s *fakeStoryStore) GetByID(ctx context.Context, id string) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, apperr.NotFoundf("story %s not found", id)
	}
	return story, nil
}

func (s *fakeStoryStore) ListActive(ctx context.Context, now time.Time) ([]*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Story
	for _, id := range s.order {
		if s.stories[id].ExpiresAt.After(now) {
			out = append(out, s.stories[id])
		}
	}
	return out, nil
}

func (s *fakeStoryStore) CreateView(ctx context.Context, view *models.StoryView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, *view)
	return nil
}

func (s *fakeStoryStore) ViewExists(ctx context.Context, storyID, viewerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.views {
		if v.StoryID == storyID && v.ViewerID == viewerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStoryStore) ListViewsForStories(ctx context.Context, storyIDs []string) (map[string][]models.StoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]struct{}, len(storyIDs))
	for _, id := range storyIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string][]models.StoryView)
	for _, v := range s.views {
		if _, ok := wanted[v.StoryID]; ok {
			out[v.StoryID] = append(out[v.StoryID], v)
		}
	}
	return out, nil
}

func (s *fakeStoryStore) viewCount(storyID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.views {
		if v.StoryID == storyID {
			n++
		}
	}
	return n
}

type fakeCallStore struct {
	records []*models.CallRecord
}

func (s *fakeCallStore) ListForUser(ctx context.Context, userID string, limit int) ([]*models.CallRecord, error) {
	var out []*models.CallRecord
	for _, r := range s.records {
		if r.CallerID == userID || r.ReceiverID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUploader struct {
	err     error
	uploads int
	lastKey string
}

func (u *fakeUploader) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads++
	u.lastKey = key
	return "https://media.example.com/" + key, nil
}

// fakeScheduler hands out manually driven timer handles and counts how many
// are live at once
type fakeScheduler struct {
	mu      sync.Mutex
	live    int
	maxLive int
	fn      func()
}

func (s *fakeScheduler) Every(interval time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live++
	if s.live > s.maxLive {
		s.maxLive = s.live
	}
	s.fn = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.live--
			s.mu.Unlock()
		})
	}
}

func (s *fakeScheduler) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

type fakeViewRecorder struct {
	mu    sync.Mutex
	calls []string // story ids in view order
}

func (r *fakeViewRecorder) View(ctx context.Context, storyID, viewerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, storyID)
	return nil
}
