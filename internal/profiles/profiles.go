// Package profiles stores the caller's own display profile.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("profiles: not found")

type Profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// DisplayName is the name, or the email when no name is set.
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.Email
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Get loads the profile of userID.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	p := &Profile{UserID: userID}
	err := s.db.QueryRow(ctx, `SELECT name, email, phone FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.Name, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("profiles: get: %w", err)
	}
	return p, nil
}

// Upsert writes the profile and returns the stored row.
func (s *Store) Upsert(ctx context.Context, p Profile) (*Profile, error) {
	query := `
		INSERT INTO profiles (user_id, name, email, phone, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone, updated_at = now()
		RETURNING name, email, phone`
	out := &Profile{UserID: p.UserID}
	if err := s.db.QueryRow(ctx, query, p.UserID, p.Name, p.Email, p.Phone).Scan(&out.Name, &out.Email, &out.Phone); err != nil {
		return nil, fmt.Errorf("profiles: upsert: %w", err)
	}
	return out, nil
}
