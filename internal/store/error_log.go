package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/roadpoints/internal/model"
)

// ErrorLogStore keeps upstream API failures for sponsors to review.
type ErrorLogStore struct {
	db *sql.DB
}

func NewErrorLogStore(db *sql.DB) *ErrorLogStore {
	return &ErrorLogStore{db: db}
}

func (s *ErrorLogStore) Record(ctx context.Context, e model.APIErrorLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_error_logs (sponsor_id, source, operation, status_code, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullInt64(e.SponsorID), e.Source, e.Operation, e.StatusCode, e.Message, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert api error log: %w", err)
	}
	return nil
}

// ListBySponsor returns the most recent entries for a sponsor, newest first.
func (s *ErrorLogStore) ListBySponsor(ctx context.Context, sponsorID int64, limit int) ([]model.APIErrorLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sponsor_id, source, operation, status_code, message, created_at
		FROM api_error_logs WHERE sponsor_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sponsorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list api error logs: %w", err)
	}
	defer rows.Close()

	var logs []model.APIErrorLog
	for rows.Next() {
		var e model.APIErrorLog
		var sponsor sql.NullInt64
		if err := rows.Scan(&e.ID, &sponsor, &e.Source, &e.Operation, &e.StatusCode, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api error log: %w", err)
		}
		e.SponsorID = int64Ptr(sponsor)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
