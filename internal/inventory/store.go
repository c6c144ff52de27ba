package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const itemColumns = `id::text, branch_id::text, stock, details, created_at`

// List returns up to limit items starting at offset, newest first.
func (s *Store) List(ctx context.Context, branchID string, f Filter, limit, offset int) ([]Item, error) {
	pattern := ""
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern = "%" + likeEscaper.Replace(q) + "%"
	}
	query := `
		SELECT ` + itemColumns + `
		FROM inventory
		WHERE branch_id = $1
		  AND ($2 = '' OR details->'category'->>'en' = $2)
		  AND ($3 = '' OR details->'sub_category'->>'en' = $3)
		  AND ($4 = '' OR details->'name'->>'en' ILIKE $4 OR details->'name'->>'ar' ILIKE $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := s.db.Query(ctx, query, branchID, f.Category, f.SubCategory, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// Create inserts a new item.
func (s *Store) Create(ctx context.Context, branchID string, stock int, details Details) (*Item, error) {
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("inventory: marshal details: %w", err)
	}
	query := `
		INSERT INTO inventory (branch_id, stock, details)
		VALUES ($1, $2, $3)
		RETURNING ` + itemColumns
	return scanItem(s.db.QueryRow(ctx, query, branchID, stock, data))
}

// SetStock replaces the stock of an item.
func (s *Store) SetStock(ctx context.Context, branchID, id string, stock int) (*Item, error) {
	query := `
		UPDATE inventory
		SET stock = $1
		WHERE id::text = $2 AND branch_id = $3
		RETURNING ` + itemColumns
	return scanItem(s.db.QueryRow(ctx, query, stock, id, branchID))
}

func scanItem(row pgx.Row) (*Item, error) {
	var (
		item Item
		raw  []byte
	)
	if err := row.Scan(&item.ID, &item.BranchID, &item.Stock, &raw, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("inventory: scan item: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &item.Details); err != nil {
			return nil, fmt.Errorf("inventory: decode details: %w", err)
		}
	}
	return &item, nil
}
