package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"
)

func newTestStories(t *testing.T, ttl time.Duration) (*Stories, *fakeStoryStore, *fakeUploader) {
	t.Helper()
	users := newFakeUserStore(
		testUser("alice", "Alice"),
		testUser("bob", "Bob"),
		testUser("carol", "Carol"),
	)
	store := newFakeStoryStore()
	uploader := &fakeUploader{}
	return NewStories(store, users, uploader, ttl), store, uploader
}

func imageUpload(name string) FileUpload {
	return FileUpload{
		Name:        name,
		ContentType: "image/jpeg",
		Size:        4,
		Content:     strings.NewReader("jpeg"),
	}
}

func TestPublishSetsExpiryFromTTL(t *testing.T) {
	s, store, uploader := newTestStories(t, 24*time.Hour)
	published := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return published }

	story, err := s.Publish(context.Background(), "alice", imageUpload("sunset.jpg"), "golden hour")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if story.Kind != models.StoryImage {
		t.Errorf("expected image kind, got %s", story.Kind)
	}
	if !story.ExpiresAt.Equal(published.Add(24 * time.Hour)) {
		t.Errorf("unexpected expiry %v", story.ExpiresAt)
	}
	if story.Caption != "golden hour" {
		t.Errorf("unexpected caption %q", story.Caption)
	}
	if uploader.uploads != 1 || !strings.HasPrefix(uploader.lastKey, "stories/alice/") {
		t.Errorf("unexpected upload key %q", uploader.lastKey)
	}
	if _, err := store.GetByID(context.Background(), story.ID); err != nil {
		t.Errorf("story not persisted: %v", err)
	}
}

func TestPublishRejectsNonMedia(t *testing.T) {
	s, store, uploader := newTestStories(t, 24*time.Hour)

	file := FileUpload{
		Name:        "notes.pdf",
		ContentType: "application/pdf",
		Size:        3,
		Content:     strings.NewReader("pdf"),
	}
	_, err := s.Publish(context.Background(), "alice", file, "")
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if uploader.uploads != 0 {
		t.Error("rejected media must not be uploaded")
	}
	if got, _ := store.ListActive(context.Background(), time.Now()); len(got) != 0 {
		t.Error("rejected media must not be stored")
	}
}

func TestListActiveTTLBoundaries(t *testing.T) {
	s, _, _ := newTestStories(t, 24*time.Hour)
	ctx := context.Background()
	published := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return published }
	story, err := s.Publish(ctx, "alice", imageUpload("a.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	cases := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"at publication", published, true},
		{"one second before expiry", published.Add(24*time.Hour - time.Second), true},
		{"exactly at expiry", published.Add(24 * time.Hour), false},
		{"an hour past expiry", published.Add(25 * time.Hour), false},
	}
	for _, c := range cases {
		s.now = func() time.Time { return c.at }
		feed, err := s.ListActive(ctx, "bob")
		if err != nil {
			t.Fatalf("%s: list failed: %v", c.name, err)
		}
		got := len(feed.Flattened()) == 1
		if got != c.active {
			t.Errorf("%s: active = %v, want %v", c.name, got, c.active)
		}
	}

	if !story.Active(published.Add(23 * time.Hour)) {
		t.Error("story must report active inside the window")
	}
	if story.Active(published.Add(24 * time.Hour)) {
		t.Error("story must report inactive at the expiry instant")
	}
}

func TestViewDedup(t *testing.T) {
	s, store, _ := newTestStories(t, 24*time.Hour)
	ctx := context.Background()

	story, err := s.Publish(ctx, "alice", imageUpload("a.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := s.View(ctx, story.ID, "bob"); err != nil {
		t.Fatalf("first view failed: %v", err)
	}
	if err := s.View(ctx, story.ID, "bob"); err != nil {
		t.Fatalf("repeat view failed: %v", err)
	}
	if n := store.viewCount(story.ID); n != 1 {
		t.Errorf("expected exactly one view record, got %d", n)
	}

	// Authors viewing their own story leave no record
	if err := s.View(ctx, story.ID, "alice"); err != nil {
		t.Fatalf("author view failed: %v", err)
	}
	if n := store.viewCount(story.ID); n != 1 {
		t.Errorf("author self-view must not add a record, got %d", n)
	}

	if err := s.View(ctx, "missing", "bob"); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("expected not-found for unknown story, got %v", err)
	}
}

func TestListActivePartitionAndUnseen(t *testing.T) {
	s, _, _ := newTestStories(t, 24*time.Hour)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	mine, err := s.Publish(ctx, "alice", imageUpload("mine.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	bob1, err := s.Publish(ctx, "bob", imageUpload("b1.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	bob2, err := s.Publish(ctx, "bob", imageUpload("b2.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	carol1, err := s.Publish(ctx, "carol", imageUpload("c1.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := s.View(ctx, bob1.ID, "alice"); err != nil {
		t.Fatalf("view failed: %v", err)
	}

	feed, err := s.ListActive(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(feed.Mine) != 1 || feed.Mine[0].Story.ID != mine.ID {
		t.Fatalf("unexpected own partition: %+v", feed.Mine)
	}
	if len(feed.Others) != 2 {
		t.Fatalf("expected 2 author groups, got %d", len(feed.Others))
	}

	bobGroup := feed.Others[0]
	if bobGroup.Author == nil || bobGroup.Author.ID != "bob" {
		t.Fatalf("expected bob's group first, got %+v", bobGroup.Author)
	}
	if len(bobGroup.Stories) != 2 {
		t.Fatalf("expected 2 stories in bob's group, got %d", len(bobGroup.Stories))
	}
	if !bobGroup.HasUnseen {
		t.Error("bob's group has an unviewed story and must be flagged unseen")
	}

	carolGroup := feed.Others[1]
	if carolGroup.Author == nil || carolGroup.Author.ID != "carol" {
		t.Fatalf("expected carol's group second, got %+v", carolGroup.Author)
	}
	if !carolGroup.HasUnseen {
		t.Error("carol's group is entirely unviewed and must be flagged unseen")
	}

	// After viewing everything of bob's, his group is no longer unseen
	if err := s.View(ctx, bob2.ID, "alice"); err != nil {
		t.Fatalf("view failed: %v", err)
	}
	feed, err = s.ListActive(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if feed.Others[0].HasUnseen {
		t.Error("fully viewed group must not be flagged unseen")
	}

	flat := feed.Flattened()
	wantOrder := []string{mine.ID, bob1.ID, bob2.ID, carol1.ID}
	if len(flat) != len(wantOrder) {
		t.Fatalf("expected %d stories flattened, got %d", len(wantOrder), len(flat))
	}
	for i, id := range wantOrder {
		if flat[i].ID != id {
			t.Errorf("flattened[%d] = %s, want %s", i, flat[i].ID, id)
		}
	}
}

func TestExpiredStoryKeepsItsViews(t *testing.T) {
	s, store, _ := newTestStories(t, 24*time.Hour)
	ctx := context.Background()
	published := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return published }
	story, err := s.Publish(ctx, "alice", imageUpload("a.jpg"), "")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	s.now = func() time.Time { return published.Add(time.Hour) }
	if err := s.View(ctx, story.ID, "bob"); err != nil {
		t.Fatalf("view failed: %v", err)
	}

	s.now = func() time.Time { return published.Add(25 * time.Hour) }
	feed, err := s.ListActive(ctx, "bob")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(feed.Flattened()) != 0 {
		t.Error("expired story must not be listed")
	}
	if n := store.viewCount(story.ID); n != 1 {
		t.Errorf("expiry must not erase view records, got %d", n)
	}
}
