package services

import (
	"context"
	"sync"
	"time"

	"messenger-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Scheduler runs a function at a fixed interval until the returned cancel
// function is called
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler is the production scheduler, one goroutine per task
type TickerScheduler struct{}

// Every runs fn at the given interval until cancelled
func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// ViewRecorder records that a viewer has seen a story
type ViewRecorder interface {
	View(ctx context.Context, storyID, viewerID string) error
}

// PlaybackState is the viewer state machine's state
type PlaybackState int

const (
	// PlaybackClosed means no story is being shown
	PlaybackClosed PlaybackState = iota
	// PlaybackPlaying means a story is on screen and its timer is running
	PlaybackPlaying
)

// PlaybackSession drives story playback: progress ticks toward 100, then the
// session auto-advances to the next story in the flattened ordering, or
// closes past the end. At most one timer is live at any moment; every
// transition that changes the active story cancels the previous timer before
// starting a new one.
type PlaybackSession struct {
	viewerID string
	stories  []*models.Story
	views    ViewRecorder
	sched    Scheduler
	tick     time.Duration
	step     int

	mu       sync.Mutex
	state    PlaybackState
	index    int
	progress int
	cancel   func()
}

// NewPlaybackSession builds a session over the flattened story ordering.
// duration is how long one story stays on screen; tick is the timer interval.
func NewPlaybackSession(viewerID string, stories []*models.Story, views ViewRecorder, sched Scheduler, duration, tick time.Duration) *PlaybackSession {
	ticks := int(duration / tick)
	if ticks <= 0 {
		ticks = 1
	}
	step := 100 / ticks
	if step <= 0 {
		step = 1
	}
	return &PlaybackSession{
		viewerID: viewerID,
		stories:  stories,
		views:    views,
		sched:    sched,
		tick:     tick,
		step:     step,
		state:    PlaybackClosed,
	}
}

// Open starts playback at the first story and records its view. Opening an
// empty session leaves it closed.
func (s *PlaybackSession) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stories) == 0 || s.state == PlaybackPlaying {
		return
	}
	s.state = PlaybackPlaying
	s.index = 0
	s.progress = 0
	s.restartTimerLocked()
	s.recordView(ctx, s.stories[0])
}

// Next manually advances to the following story; past the end it closes the
// session
func (s *PlaybackSession) Next(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != PlaybackPlaying {
		return
	}
	s.advanceLocked(ctx)
}

// Previous manually steps back one story; at the first story it is a no-op
func (s *PlaybackSession) Previous(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != PlaybackPlaying || s.index == 0 {
		return
	}
	s.index--
	s.progress = 0
	s.restartTimerLocked()
	s.recordView(ctx, s.stories[s.index])
}

// Close stops playback and clears the viewer state
func (s *PlaybackSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// State returns the current state, story index and progress
func (s *PlaybackSession) State() (PlaybackState, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.index, s.progress
}

// Current returns the story on screen, or nil when closed
func (s *PlaybackSession) Current() *models.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != PlaybackPlaying {
		return nil
	}
	return s.stories[s.index]
}

// handleTick advances progress by one step and auto-advances at 100
func (s *PlaybackSession) handleTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != PlaybackPlaying {
		return
	}
	s.progress += s.step
	if s.progress >= 100 {
		s.advanceLocked(context.Background())
	}
}

// advanceLocked moves to the next story or closes past the end. Caller holds mu.
func (s *PlaybackSession) advanceLocked(ctx context.Context) {
	if s.index+1 >= len(s.stories) {
		s.closeLocked()
		return
	}
	s.index++
	s.progress = 0
	s.restartTimerLocked()
	s.recordView(ctx, s.stories[s.index])
}

// restartTimerLocked atomically replaces the scheduled-task handle. Caller holds mu.
func (s *PlaybackSession) restartTimerLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = s.sched.Every(s.tick, s.handleTick)
}

// closeLocked cancels the pending timer and resets the state. Caller holds mu.
func (s *PlaybackSession) closeLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = PlaybackClosed
	s.index = 0
	s.progress = 0
}

// recordView records the view for the story entering the screen. A failed
// view write never interrupts playback.
func (s *PlaybackSession) recordView(ctx context.Context, story *models.Story) {
	if s.views == nil {
		return
	}
	if err := s.views.View(ctx, story.ID, s.viewerID); err != nil {
		log.Warn().Err(err).Str("story_id", story.ID).Msg("Failed to record story view")
	}
}

// PlaybackSessions keeps one playback session per viewer. Opening a new
// session closes the viewer's previous one, so a viewer never drives two
// timers.
type PlaybackSessions struct {
	stories  *Stories
	sched    Scheduler
	duration time.Duration
	tick     time.Duration

	mu       sync.Mutex
	byViewer map[string]*PlaybackSession
}

// NewPlaybackSessions creates the per-viewer session manager
func NewPlaybackSessions(stories *Stories, sched Scheduler, duration, tick time.Duration) *PlaybackSessions {
	return &PlaybackSessions{
		stories:  stories,
		sched:    sched,
		duration: duration,
		tick:     tick,
		byViewer: make(map[string]*PlaybackSession),
	}
}

// Open builds a session over the viewer's current flattened feed and starts
// playback at the first story
func (m *PlaybackSessions) Open(ctx context.Context, viewerID string) (*PlaybackSession, error) {
	feed, err := m.stories.ListActive(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	session := NewPlaybackSession(viewerID, feed.Flattened(), m.stories, m.sched, m.duration, m.tick)

	m.mu.Lock()
	if prev, ok := m.byViewer[viewerID]; ok {
		prev.Close()
	}
	m.byViewer[viewerID] = session
	m.mu.Unlock()

	session.Open(ctx)
	return session, nil
}

// Get returns the viewer's session, if any
func (m *PlaybackSessions) Get(viewerID string) (*PlaybackSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byViewer[viewerID]
	return s, ok
}

// Close stops and discards the viewer's session
func (m *PlaybackSessions) Close(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byViewer[viewerID]; ok {
		s.Close()
		delete(m.byViewer, viewerID)
	}
}
