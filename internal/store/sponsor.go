package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
)

type SponsorStore struct {
	db *sql.DB
}

func NewSponsorStore(db *sql.DB) *SponsorStore {
	return &SponsorStore{db: db}
}

func scanSponsor(scanner interface{ Scan(...any) error }) (*model.Sponsor, error) {
	var s model.Sponsor
	if err := scanner.Scan(&s.ID, &s.CompanyName, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

const sponsorCols = `id, company_name, created_at`

func (s *SponsorStore) Create(ctx context.Context, companyName string) (*model.Sponsor, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO sponsors (company_name) VALUES (?)`, companyName)
	if err != nil {
		return nil, fmt.Errorf("insert sponsor: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SponsorStore) GetByID(ctx context.Context, id int64) (*model.Sponsor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sponsorCols+` FROM sponsors WHERE id = ?`, id)
	sp, err := scanSponsor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sponsor: %w", err)
	}
	return sp, nil
}

func (s *SponsorStore) List(ctx context.Context) ([]model.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sponsorCols+` FROM sponsors ORDER BY company_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list sponsors: %w", err)
	}
	defer rows.Close()

	var sponsors []model.Sponsor
	for rows.Next() {
		sp, err := scanSponsor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sponsor: %w", err)
		}
		sponsors = append(sponsors, *sp)
	}
	return sponsors, rows.Err()
}
