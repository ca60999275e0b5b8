package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/google/uuid"
)

// Stories manages ephemeral story posts: publishing, active listing with
// per-viewer seen state, and once-per-viewer view records.
type Stories struct {
	store    StoryStore
	users    UserStore
	uploader Uploader
	ttl      time.Duration
	now      func() time.Time
}

// NewStories creates the story service
func NewStories(store StoryStore, users UserStore, uploader Uploader, ttl time.Duration) *Stories {
	return &Stories{
		store:    store,
		users:    users,
		uploader: uploader,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Publish uploads the media and creates a story that stays active for the
// configured TTL from now
func (s *Stories) Publish(ctx context.Context, authorID string, file FileUpload, caption string) (*models.Story, error) {
	kind, err := classifyStoryKind(file.ContentType)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	key := fmt.Sprintf("stories/%s/%s_%s", authorID, id, file.Name)
	url, err := s.uploader.Upload(ctx, key, file.ContentType, file.Content, file.Size)
	if err != nil {
		return nil, apperr.Uploadf(err, "failed to upload story media")
	}

	now := s.now()
	story := &models.Story{
		ID:        id,
		AuthorID:  authorID,
		MediaURL:  url,
		Kind:      kind,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, story); err != nil {
		return nil, err
	}
	return story, nil
}

// StoryWithViews is one of the viewer's own stories with its view records
type StoryWithViews struct {
	Story *models.Story      `json:"story"`
	Views []models.StoryView `json:"views"`
}

// StoryGroup is one author's active stories
type StoryGroup struct {
	Author    *models.User    `json:"author"`
	Stories   []*models.Story `json:"stories"`
	HasUnseen bool            `json:"has_unseen"`
}

// StoryFeed partitions active stories into the viewer's own and everyone
// else's, grouped by author
type StoryFeed struct {
	Mine   []StoryWithViews `json:"mine"`
	Others []StoryGroup     `json:"others"`
}

// Flattened returns the playback ordering: the viewer's own stories first,
// then the other groups' stories in group order
func (f *StoryFeed) Flattened() []*models.Story {
	var out []*models.Story
	for _, sv := range f.Mine {
		out = append(out, sv.Story)
	}
	for _, g := range f.Others {
		out = append(out, g.Stories...)
	}
	return out
}

// ListActive returns all stories still inside their TTL, partitioned for the
// viewer. A group is flagged unseen if any of its stories lacks a view record
// from the viewer. Expiry is evaluated against the current time; nothing is
// deleted here.
func (s *Stories) ListActive(ctx context.Context, viewerID string) (*StoryFeed, error) {
	stories, err := s.store.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}

	feed := &StoryFeed{}
	if len(stories) == 0 {
		return feed, nil
	}

	ids := make([]string, 0, len(stories))
	authorIDs := make(map[string]struct{})
	for _, st := range stories {
		ids = append(ids, st.ID)
		authorIDs[st.AuthorID] = struct{}{}
	}

	views, err := s.store.ListViewsForStories(ctx, ids)
	if err != nil {
		return nil, err
	}

	authorList := make([]string, 0, len(authorIDs))
	for id := range authorIDs {
		authorList = append(authorList, id)
	}
	authors, err := s.users.GetByIDs(ctx, authorList)
	if err != nil {
		return nil, err
	}
	authorByID := make(map[string]*models.User, len(authors))
	for _, a := range authors {
		authorByID[a.ID] = a
	}

	groupIndex := make(map[string]int)
	for _, st := range stories {
		if st.AuthorID == viewerID {
			feed.Mine = append(feed.Mine, StoryWithViews{Story: st, Views: views[st.ID]})
			continue
		}

		seen := false
		for _, v := range views[st.ID] {
			if v.ViewerID == viewerID {
				seen = true
				break
			}
		}

		idx, ok := groupIndex[st.AuthorID]
		if !ok {
			feed.Others = append(feed.Others, StoryGroup{Author: authorByID[st.AuthorID]})
			idx = len(feed.Others) - 1
			groupIndex[st.AuthorID] = idx
		}
		feed.Others[idx].Stories = append(feed.Others[idx].Stories, st)
		if !seen {
			feed.Others[idx].HasUnseen = true
		}
	}

	return feed, nil
}

// View records that the viewer has seen the story. Authors viewing their own
// story leave no record; repeated views leave exactly one. The check-then-
// insert is not transactional; concurrent viewers of the same story may race.
func (s *Stories) View(ctx context.Context, storyID, viewerID string) error {
	story, err := s.store.GetByID(ctx, storyID)
	if err != nil {
		return err
	}
	if story.AuthorID == viewerID {
		return nil
	}

	exists, err := s.store.ViewExists(ctx, storyID, viewerID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	view := &models.StoryView{
		StoryID:  storyID,
		ViewerID: viewerID,
		ViewedAt: s.now(),
	}
	return s.store.CreateView(ctx, view)
}

// classifyStoryKind maps a declared media type to a story kind
func classifyStoryKind(contentType string) (models.StoryKind, error) {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return models.StoryVideo, nil
	case strings.HasPrefix(contentType, "image/"):
		return models.StoryImage, nil
	default:
		return "", apperr.Validationf("story media must be an image or a video, got %q", contentType)
	}
}
