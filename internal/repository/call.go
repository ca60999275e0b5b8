package repository

import (
	"context"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CallRepository handles database reads for call records.
// Records are written by the call-signaling service, not by this engine.
type CallRepository struct {
	db *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *pgxpool.Pool) *CallRepository {
	return &CallRepository{db: db}
}

// ListForUser retrieves call records where the user is caller or receiver,
// most recent first
func (r *CallRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*models.CallRecord, error) {
	query := `
		SELECT id, caller_id, receiver_id, kind, outcome, duration_seconds, started_at
		FROM call_records
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, apperr.Storef(err, "failed to list call records")
	}
	defer rows.Close()

	var calls []*models.CallRecord
	for rows.Next() {
		var call models.CallRecord
		if err := rows.Scan(
			&call.ID, &call.CallerID, &call.ReceiverID, &call.Kind,
			&call.Outcome, &call.DurationSeconds, &call.StartedAt,
		); err != nil {
			return nil, apperr.Storef(err, "failed to scan call record")
		}
		calls = append(calls, &call)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storef(err, "failed to read call records")
	}
	return calls, nil
}
