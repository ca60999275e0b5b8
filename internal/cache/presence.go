package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// PresenceCache mirrors online/last-seen state in valkey so conversation
// listings can read counterpart presence without hitting the users table.
// Entries expire on their own; a user whose entry has lapsed is reported
// as not cached and callers fall back to the durable record.
type PresenceCache struct {
	client valkey.Client
	ttl    time.Duration
}

type presenceEntry struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// NewPresenceCache connects to valkey. TTL should be at least twice the
// heartbeat interval so a single missed beat does not flap presence.
func NewPresenceCache(address, password string, ttl time.Duration) (*PresenceCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return &PresenceCache{client: client, ttl: ttl}, nil
}

// Set writes a user's presence entry with the configured TTL
func (c *PresenceCache) Set(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	data, err := json.Marshal(presenceEntry{Online: online, LastSeen: lastSeen})
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}
	cmd := c.client.B().Set().Key(presenceKey(userID)).Value(string(data)).
		Ex(c.ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to cache presence: %w", err)
	}
	return nil
}

// Get reads a user's presence entry. ok is false when the entry is absent
// or has expired.
func (c *PresenceCache) Get(ctx context.Context, userID string) (online bool, lastSeen time.Time, ok bool, err error) {
	cmd := c.client.B().Get().Key(presenceKey(userID)).Build()
	raw, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, time.Time{}, false, nil
		}
		return false, time.Time{}, false, fmt.Errorf("failed to read presence: %w", err)
	}
	var entry presenceEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return false, time.Time{}, false, fmt.Errorf("failed to unmarshal presence entry: %w", err)
	}
	return entry.Online, entry.LastSeen, true, nil
}

// Close shuts the valkey client down
func (c *PresenceCache) Close() {
	c.client.Close()
}

func presenceKey(userID string) string {
	return "presence:" + userID
}
