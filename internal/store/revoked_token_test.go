package store

import (
	"context"
	"testing"
	"time"
)

func TestRevokedTokens(t *testing.T) {
	rs := NewRevokedTokenStore(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	if err := rs.Revoke(ctx, "live", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := rs.Revoke(ctx, "live", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke twice: %v", err)
	}
	if err := rs.Revoke(ctx, "stale", now.Add(-time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	revoked, err := rs.IsRevoked(ctx, "live")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Error("expected live token to be revoked")
	}

	n, err := rs.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	revoked, err = rs.IsRevoked(ctx, "unknown")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Error("unknown token reported revoked")
	}
}
