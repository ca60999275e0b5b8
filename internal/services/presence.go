package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PresenceTracker maintains each connected user's online flag and last-seen
// timestamp. Every call is one durable write to the users collection, mirrored
// into the presence cache. A failed heartbeat is logged and silently retried
// on the next tick, so observed staleness is bounded by the interval.
type PresenceTracker struct {
	users    UserStore
	cache    PresenceStore
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	connected map[string]struct{}
}

// NewPresenceTracker creates a presence tracker. cache may be nil, in which
// case lookups always fall back to the durable users record.
func NewPresenceTracker(users UserStore, cache PresenceStore, interval time.Duration) *PresenceTracker {
	return &PresenceTracker{
		users:     users,
		cache:     cache,
		interval:  interval,
		now:       time.Now,
		connected: make(map[string]struct{}),
	}
}

// MarkOnline records that a user connected
func (t *PresenceTracker) MarkOnline(ctx context.Context, userID string) error {
	t.mu.Lock()
	t.connected[userID] = struct{}{}
	t.mu.Unlock()

	return t.write(ctx, userID, true)
}

// Heartbeat refreshes a connected user's last-seen timestamp. Failures are
// not fatal; the next tick retries.
func (t *PresenceTracker) Heartbeat(ctx context.Context, userID string) {
	if err := t.write(ctx, userID, true); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Heartbeat write failed")
	}
}

// MarkOffline records that a user disconnected, setting last-seen to now
func (t *PresenceTracker) MarkOffline(ctx context.Context, userID string) error {
	t.mu.Lock()
	delete(t.connected, userID)
	t.mu.Unlock()

	return t.write(ctx, userID, false)
}

// Lookup returns a user's live presence, preferring the cache and falling
// back to the durable record when the cache entry is absent or expired
func (t *PresenceTracker) Lookup(ctx context.Context, userID string) (online bool, lastSeen time.Time, err error) {
	if t.cache != nil {
		online, lastSeen, ok, cacheErr := t.cache.Get(ctx, userID)
		if cacheErr != nil {
			log.Warn().Err(cacheErr).Str("user_id", userID).Msg("Presence cache read failed")
		} else if ok {
			return online, lastSeen, nil
		}
	}

	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}
	return user.Online, user.LastSeen, nil
}

// Run drives periodic heartbeats for every connected user until ctx is done
func (t *PresenceTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range t.connectedIDs() {
				t.Heartbeat(ctx, userID)
			}
		}
	}
}

func (t *PresenceTracker) connectedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.connected))
	for id := range t.connected {
		ids = append(ids, id)
	}
	return ids
}

func (t *PresenceTracker) write(ctx context.Context, userID string, online bool) error {
	now := t.now()
	if err := t.users.UpdatePresence(ctx, userID, online, now); err != nil {
		return err
	}
	if t.cache != nil {
		if err := t.cache.Set(ctx, userID, online, now); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Presence cache write failed")
		}
	}
	return nil
}
