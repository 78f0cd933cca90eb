package tokencache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/florianilch/signet/internal/tokenstore"
)

var (
	// ErrAlreadyInitialized is returned when Initialize is called again with a different Config.
	ErrAlreadyInitialized = errors.New("token cache already initialized with a different configuration")
	// ErrNotInitialized is returned by operations on a cache that has not been initialized.
	ErrNotInitialized = errors.New("token cache not initialized")
	// ErrCorrupt is returned by Load when a stored record cannot be decoded.
	ErrCorrupt = errors.New("token cache record corrupt")
	// ErrIO wraps failures of the storage backend.
	ErrIO = errors.New("token cache storage failure")
)

// Cache stores one Record in a secure-storage backend.
type Cache struct {
	mu    sync.RWMutex
	cfg   *Config
	store tokenstore.Store
}

// New returns an uninitialized Cache.
func New() *Cache {
	return &Cache{}
}

// Open returns a Cache initialized with cfg.
func Open(cfg Config) (*Cache, error) {
	c := New()
	if err := c.Initialize(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithStore returns a Cache bound to an existing backend.
func NewWithStore(store tokenstore.Store) *Cache {
	return &Cache{cfg: &Config{}, store: store}
}

// Initialize configures the storage backend. Calling it again with an equal
// Config is a no-op; a different Config fails with ErrAlreadyInitialized.
func (c *Cache) Initialize(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil {
		if *c.cfg == cfg {
			return nil
		}
		return ErrAlreadyInitialized
	}

	store, err := cfg.newStore()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.cfg = &cfg
	c.store = store
	return nil
}

func (c *Cache) backend() (tokenstore.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.store == nil {
		return nil, ErrNotInitialized
	}
	return c.store, nil
}

// Load returns the stored record, or nil if none is stored. A record that
// cannot be decoded yields ErrCorrupt.
func (c *Cache) Load(ctx context.Context) (*Record, error) {
	store, err := c.backend()
	if err != nil {
		return nil, err
	}

	data, err := store.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return unmarshalRecord(data)
}

// Save replaces the stored record.
func (c *Cache) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return errors.New("cannot save nil record")
	}

	store, err := c.backend()
	if err != nil {
		return err
	}

	data, err := marshalRecord(r)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	if err := store.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// Clear removes the stored record.
func (c *Cache) Clear(ctx context.Context) error {
	store, err := c.backend()
	if err != nil {
		return err
	}

	if err := store.Delete(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
