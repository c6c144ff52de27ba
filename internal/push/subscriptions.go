// Package push keeps the browser push subscriptions of users.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrInvalid = errors.New("push: subscription endpoint required")

// DB abstracts the pgx exec interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Endpoint extracts the endpoint URL of a Web Push subscription document.
func Endpoint(subscription json.RawMessage) (string, error) {
	var doc struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(subscription, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	endpoint := strings.TrimSpace(doc.Endpoint)
	if endpoint == "" {
		return "", ErrInvalid
	}
	return endpoint, nil
}

// Subscribe stores the subscription unless one with the same endpoint
// already exists. It reports whether a row was inserted. The unique endpoint
// index settles concurrent subscribes.
func (s *Store) Subscribe(ctx context.Context, userID string, subscription json.RawMessage) (bool, error) {
	if _, err := Endpoint(subscription); err != nil {
		return false, err
	}
	query := `
		INSERT INTO user_subscriptions (user_id, subscription_json)
		VALUES ($1, $2::jsonb)
		ON CONFLICT ((subscription_json->>'endpoint')) DO NOTHING`
	tag, err := s.db.Exec(ctx, query, userID, []byte(subscription))
	if err != nil {
		return false, fmt.Errorf("push: subscribe: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unsubscribe removes the caller's subscriptions for endpoint.
func (s *Store) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrInvalid
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_subscriptions
		WHERE subscription_json->>'endpoint' = $1 AND user_id = $2`, endpoint, userID)
	if err != nil {
		return fmt.Errorf("push: unsubscribe: %w", err)
	}
	return nil
}
