package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/roadpoints/internal/database"
	"github.com/dukerupert/roadpoints/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createSponsor(t *testing.T, db *sql.DB, name string) *model.Sponsor {
	t.Helper()
	sp, err := NewSponsorStore(db).Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create sponsor: %v", err)
	}
	return sp
}

func createDriver(t *testing.T, db *sql.DB, username string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(context.Background(), NewUser{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         model.RoleDriver,
	})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return u
}
