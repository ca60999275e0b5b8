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

// StoryRepository handles database operations for stories and story views
type StoryRepository struct {
	db *pgxpool.Pool
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *pgxpool.Pool) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create creates a new story
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	query := `
		INSERT INTO stories (id, author_id, media_url, kind, caption, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		story.ID, story.AuthorID, story.MediaURL, story.Kind, story.Caption,
		story.CreatedAt, story.ExpiresAt,
	)
	if err != nil {
		return apperr.Storef(err, "failed to create story")
	}
	return nil
}

// GetByID retrieves a story by ID
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*models.Story, error) {
	query := `
		SELECT id, author_id, media_url, kind, caption, created_at, expires_at
		FROM stories
		WHERE id = $1
	`
	var story models.Story
	err := r.db.QueryRow(ctx, query, id).Scan(
		&story.ID, &story.AuthorID, &story.MediaURL, &story.Kind, &story.Caption,
		&story.CreatedAt, &story.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("story %s not found", id)
		}
		return nil, apperr.Storef(err, "failed to get story")
	}
	return &story, nil
}

// ListActive retrieves all stories whose expiry is after the given time,
// oldest first. Expired stories stay in storage; they are simply filtered out.
func (r *StoryRepository) ListActive(ctx context.Context, now time.Time) ([]*models.Story, error) {
	query := `
		SELECT id, author_id, media_url, kind, caption, created_at, expires_at
		FROM stories
		WHERE expires_at > $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list active stories")
	}
	defer rows.Close()

	var stories []*models.Story
	for rows.Next() {
		var story models.Story
		if err := rows.Scan(
			&story.ID, &story.AuthorID, &story.MediaURL, &story.Kind, &story.Caption,
			&story.CreatedAt, &story.ExpiresAt,
		); err != nil {
			return nil, apperr.Storef(err, "failed to scan story")
		}
		stories = append(stories, &story)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read stories")
	}
	return stories, nil
}

// CreateView records that a viewer has seen a story
func (r *StoryRepository) CreateView(ctx context.Context, view *models.StoryView) error {
	query := `
		INSERT INTO story_views (story_id, viewer_id, viewed_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(ctx, query, view.StoryID, view.ViewerID, view.ViewedAt)
	if err != nil {
		return apperr.Storef(err, "failed to create story view")
	}
	return nil
}

// ViewExists checks whether a (story, viewer) view record already exists
func (r *StoryRepository) ViewExists(ctx context.Context, storyID, viewerID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM story_views WHERE story_id = $1 AND viewer_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, storyID, viewerID).Scan(&exists)
	if err != nil {
		return false, apperr.Storef(err, "failed to check story view")
	}
	return exists, nil
}

// ListViewsForStories retrieves view records for a set of stories,
// keyed by story id
func (r *StoryRepository) ListViewsForStories(ctx context.Context, storyIDs []string) (map[string][]models.StoryView, error) {
	query := `
		SELECT story_id, viewer_id, viewed_at
		FROM story_views
		WHERE story_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, storyIDs)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list story views")
	}
	defer rows.Close()

	views := make(map[string][]models.StoryView)
	for rows.Next() {
		var v models.StoryView
		if err := rows.Scan(&v.StoryID, &v.ViewerID, &v.ViewedAt); err != nil {
			return nil, apperr.Storef(err, "failed to scan story view")
		}
		views[v.StoryID] = append(views[v.StoryID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read story views")
	}
	return views, nil
}
