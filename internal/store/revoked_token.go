package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokedTokenStore is the logout blacklist, keyed by token id.
type RevokedTokenStore struct {
	db *sql.DB
}

func NewRevokedTokenStore(db *sql.DB) *RevokedTokenStore {
	return &RevokedTokenStore{db: db}
}

// Revoke blacklists a token id until its expiry. Revoking twice is a no-op.
func (s *RevokedTokenStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired drops entries whose tokens could no longer verify anyway.
func (s *RevokedTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
