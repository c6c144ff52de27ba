package branches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draly94/SW/pkg/logging"
)

// ConfigCache keeps decoded catalogs in Redis. A nil client disables it.
type ConfigCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewConfigCache creates a catalog cache with the given entry lifetime.
func NewConfigCache(client *redis.Client, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ConfigCache{redis: client, ttl: ttl}
}

func (c *ConfigCache) key(branchID string, kind Kind) string {
	return fmt.Sprintf("branch:config:%s:%s", branchID, kind)
}

func (c *ConfigCache) enabled() bool {
	return c != nil && c.redis != nil
}

// Get returns the cached catalog. The bool is false on a miss.
func (c *ConfigCache) Get(ctx context.Context, branchID string, kind Kind) (Catalog, bool, error) {
	if !c.enabled() {
		return Catalog{}, false, nil
	}
	data, err := c.redis.Get(ctx, c.key(branchID, kind)).Bytes()
	if err == redis.Nil {
		return Catalog{}, false, nil
	}
	if err != nil {
		return Catalog{}, false, fmt.Errorf("branches: cache get: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, false, fmt.Errorf("branches: cache unmarshal: %w", err)
	}
	cat.normalize()
	return cat, true, nil
}

// Set stores a catalog.
func (c *ConfigCache) Set(ctx context.Context, branchID string, kind Kind, cat Catalog) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("branches: cache marshal: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(branchID, kind), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("branches: cache set: %w", err)
	}
	return nil
}

// Invalidate drops a cached catalog.
func (c *ConfigCache) Invalidate(ctx context.Context, branchID string, kind Kind) error {
	if !c.enabled() {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(branchID, kind)).Err(); err != nil {
		return fmt.Errorf("branches: cache invalidate: %w", err)
	}
	return nil
}

// CatalogRepository is the persistence side of the catalog service.
type CatalogRepository interface {
	LoadCatalog(ctx context.Context, branchID string, kind Kind) (Catalog, error)
	StoreCatalog(ctx context.Context, branchID string, kind Kind, c Catalog) error
}

// ConfigService reads catalogs through the cache and writes them through to
// Postgres.
type ConfigService struct {
	repo   CatalogRepository
	cache  *ConfigCache
	logger *logging.Logger
}

// NewConfigService wires the catalog repository and an optional cache.
func NewConfigService(repo CatalogRepository, cache *ConfigCache, logger *logging.Logger) *ConfigService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfigService{repo: repo, cache: cache, logger: logger}
}

// GetConfig returns the catalog of kind for a branch.
func (s *ConfigService) GetConfig(ctx context.Context, branchID string, kind Kind) (Catalog, error) {
	if cat, ok, err := s.cache.Get(ctx, branchID, kind); err != nil {
		s.logger.Warn("branch config cache read failed", "branch_id", branchID, "kind", kind, "error", err)
	} else if ok {
		return cat, nil
	}

	cat, err := s.repo.LoadCatalog(ctx, branchID, kind)
	if err != nil {
		return Catalog{}, err
	}
	if err := s.cache.Set(ctx, branchID, kind, cat); err != nil {
		s.logger.Warn("branch config cache write failed", "branch_id", branchID, "kind", kind, "error", err)
	}
	return cat, nil
}

// SaveConfig sanitizes and replaces the catalog of kind for a branch.
func (s *ConfigService) SaveConfig(ctx context.Context, branchID string, kind Kind, cat Catalog) (Catalog, error) {
	clean := cat.Sanitize()
	if err := s.repo.StoreCatalog(ctx, branchID, kind, clean); err != nil {
		return Catalog{}, err
	}
	if err := s.cache.Invalidate(ctx, branchID, kind); err != nil {
		s.logger.Warn("branch config cache invalidate failed", "branch_id", branchID, "kind", kind, "error", err)
	}
	return clean, nil
}
