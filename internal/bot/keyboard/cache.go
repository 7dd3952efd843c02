package keyboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/Proton-105/stepbot/internal/platform"
)

// DefaultCacheTTL bounds how long a paged list can be navigated after it was shown.
const DefaultCacheTTL = 24 * time.Hour

// Cache keeps full button lists of paged messages keyed by message id. It lives in process memory
// and is lost on restart.
type Cache struct {
	store *bigcache.BigCache
}

func NewCache(ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	store, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("create button cache: %w", err)
	}
	return &Cache{store: store}, nil
}

func (c *Cache) Set(mid string, items platform.Keyboard) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode buttons of %s: %w", mid, err)
	}
	return c.store.Set(mid, data)
}

func (c *Cache) Get(mid string) (platform.Keyboard, bool, error) {
	data, err := c.store.Get(mid)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items platform.Keyboard
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("decode buttons of %s: %w", mid, err)
	}
	return items, true, nil
}

func (c *Cache) Delete(mid string) error {
	err := c.store.Delete(mid)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (c *Cache) Len() int {
	return c.store.Len()
}

func (c *Cache) Close() error {
	return c.store.Close()
}
