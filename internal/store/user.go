package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var sponsorID sql.NullInt64
	err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &sponsorID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.SponsorID = int64Ptr(sponsorID)
	return &u, nil
}

const userCols = `id, username, email, password_hash, role, sponsor_id, created_at`

// NewUser is the input to Create. PasswordHash must already be hashed.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Role         model.Role
	SponsorID    *int64
}

func (s *UserStore) Create(ctx context.Context, in NewUser) (*model.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("insert user: invalid role %q", in.Role)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, sponsor_id) VALUES (?, ?, ?, ?, ?)`,
		in.Username, in.Email, in.PasswordHash, string(in.Role), nullInt64(in.SponsorID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *UserStore) getBy(ctx context.Context, col string, v any) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE `+col+` = ?`, v)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", col, err)
	}
	return u, nil
}

// Delete removes the user. Their membership, ledger entries and orders go
// with them through the foreign key cascade.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
