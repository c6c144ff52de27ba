package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/draly94/SW/internal/branches"
	"github.com/draly94/SW/pkg/logging"
)

// Repository is the persistence surface of the service; *Store satisfies it.
type Repository interface {
	List(ctx context.Context, branchID string, f Filter, limit, offset int) ([]Item, error)
	Create(ctx context.Context, branchID string, stock int, details Details) (*Item, error)
	SetStock(ctx context.Context, branchID, id string, stock int) (*Item, error)
}

// Catalogs reads the branch inventory configuration; *branches.ConfigService
// satisfies it.
type Catalogs interface {
	GetConfig(ctx context.Context, branchID string, kind branches.Kind) (branches.Catalog, error)
}

type Service struct {
	repo     Repository
	catalogs Catalogs
	logger   *logging.Logger
}

func NewService(repo Repository, catalogs Catalogs, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, catalogs: catalogs, logger: logger}
}

// List returns one page of items. One extra row is read to decide HasMore.
func (s *Service) List(ctx context.Context, branchID string, f Filter) (Page, error) {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Page > MaxPage {
		return Page{}, fmt.Errorf("%w: page must be at most %d", ErrInvalid, MaxPage)
	}
	f.Category = strings.TrimSpace(f.Category)
	f.SubCategory = strings.TrimSpace(f.SubCategory)
	if f.Category == "" {
		f.SubCategory = ""
	}

	items, err := s.repo.List(ctx, branchID, f, PageSize+1, f.Page*PageSize)
	if err != nil {
		return Page{}, err
	}
	page := Page{Page: f.Page, Items: items}
	if len(items) > PageSize {
		page.Items = items[:PageSize]
		page.HasMore = true
	}
	if page.Items == nil {
		page.Items = []Item{}
	}
	return page, nil
}

// Create adds an item. Unknown categories are stored as null.
func (s *Service) Create(ctx context.Context, branchID string, in CreateInput) (*Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var catalog branches.Catalog
	if in.Category != "" && s.catalogs != nil {
		c, err := s.catalogs.GetConfig(ctx, branchID, branches.KindInventory)
		if err != nil {
			return nil, fmt.Errorf("inventory: load categories: %w", err)
		}
		catalog = c
	}
	item, err := s.repo.Create(ctx, branchID, int(in.Stock), resolveDetails(in, catalog))
	if err != nil {
		return nil, err
	}
	s.logger.Info("inventory item created", "branch_id", branchID, "item_id", item.ID)
	return item, nil
}

// SetStock replaces an item's stock.
func (s *Service) SetStock(ctx context.Context, branchID, id string, stock int) (*Item, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrInvalid)
	}
	return s.repo.SetStock(ctx, branchID, id, stock)
}
