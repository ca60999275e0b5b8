package services

import (
	"context"

	"messenger-backend/internal/models"
)

// CallEntry is a call record annotated for display
type CallEntry struct {
	Record       *models.CallRecord `json:"record"`
	CallerName   string             `json:"caller_name"`
	ReceiverName string             `json:"receiver_name"`
	Outgoing     bool               `json:"outgoing"`
	Missed       bool               `json:"missed"`
}

// CallLog assembles call history for display. Read-only: records are written
// by the call-signaling service.
type CallLog struct {
	calls    CallStore
	users    UserStore
	pageSize int
}

// NewCallLog creates the call log aggregator
func NewCallLog(calls CallStore, users UserStore, pageSize int) *CallLog {
	return &CallLog{
		calls:    calls,
		users:    users,
		pageSize: pageSize,
	}
}

// ListForUser returns the user's call history, most recent first, capped at
// the configured page size, with both parties' display names resolved
func (c *CallLog) ListForUser(ctx context.Context, userID string) ([]*CallEntry, error) {
	records, err := c.calls.ListForUser(ctx, userID, c.pageSize)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []*CallEntry{}, nil
	}

	idSet := make(map[string]struct{})
	for _, r := range records {
		idSet[r.CallerID] = struct{}{}
		idSet[r.ReceiverID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := c.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}

	entries := make([]*CallEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, &CallEntry{
			Record:       r,
			CallerName:   names[r.CallerID],
			ReceiverName: names[r.ReceiverID],
			Outgoing:     r.CallerID == userID,
			Missed:       r.Outcome == models.CallMissed,
		})
	}
	return entries, nil
}
