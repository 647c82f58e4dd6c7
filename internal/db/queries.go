package db

import (
	"context"
	"fmt"
	"time"

	"github.com/simanam/personalsite-new/internal/models"
)

const schema = `
    CREATE TABLE IF NOT EXISTS chat_access_logs (
        id               BIGSERIAL PRIMARY KEY,
        request_id       TEXT        NOT NULL DEFAULT '',
        client_identity  TEXT        NOT NULL,
        outcome          TEXT        NOT NULL,
        status_code      INTEGER     NOT NULL,
        response_time_ms INTEGER     NOT NULL,
        request_size     BIGINT      NOT NULL,
        response_size    BIGINT      NOT NULL,
        timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    CREATE INDEX IF NOT EXISTS chat_access_logs_timestamp_idx ON chat_access_logs (timestamp);
`

func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating chat_access_logs: %w", err)
	}
	return nil
}

func (db *DB) LogAccess(ctx context.Context, log *models.AccessLog) error {
	query := `
        INSERT INTO chat_access_logs (request_id, client_identity, outcome, status_code, response_time_ms, request_size, response_size)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, timestamp
    `

	err := db.Pool.QueryRow(ctx, query,
		log.RequestID,
		log.ClientIdentity,
		string(log.Outcome),
		log.StatusCode,
		log.ResponseTimeMs,
		log.RequestSize,
		log.ResponseSize,
	).Scan(&log.ID, &log.Timestamp)

	return err
}

// OutcomeCounts aggregates access logs newer than since by outcome.
func (db *DB) OutcomeCounts(ctx context.Context, since time.Time) (map[models.Outcome]int64, error) {
	query := `
        SELECT outcome, COUNT(*)
        FROM chat_access_logs
        WHERE timestamp >= $1
        GROUP BY outcome
    `

	rows, err := db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Outcome]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[models.Outcome(outcome)] = n
	}

	return counts, rows.Err()
}
