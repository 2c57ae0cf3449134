package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"user-management/internal/observability"
)

// PostgresRecorder appends entries to the action_logs table.
type PostgresRecorder struct {
	db     *sql.DB
	logger *observability.Logger
}

func NewPostgresRecorder(db *sql.DB, logger *observability.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: logger}
}

// Record inserts the entry. Failures are logged and swallowed so auth flows
// never fail on audit writes.
func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) {
	ip := entry.IP
	if ip == "" {
		ip = ClientIPFromContext(ctx)
	}

	var userID any
	if entry.UserID != nil {
		userID = *entry.UserID
	}
	var username any
	if entry.Username != "" {
		username = entry.Username
	}
	var ipValue any
	if ip != "" {
		ipValue = ip
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_logs (user_id, username, action, status, ip_address)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, username, string(entry.Action), string(entry.Outcome), ipValue)
	if err != nil {
		r.logger.Error("audit_write_failed", map[string]any{
			"action": string(entry.Action),
			"status": string(entry.Outcome),
			"error":  err.Error(),
		})
	}
}

// PruneOlderThan deletes audit records created before cutoff, at most
// batchSize per call, and returns the number deleted.
func (r *PostgresRecorder) PruneOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM action_logs
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM action_logs t
		USING stale
		WHERE t.id = stale.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale action logs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale action logs rows affected: %w", err)
	}

	return affected, nil
}
