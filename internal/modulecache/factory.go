package modulecache

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialised is returned by Factory.Init when called a second
// time with a different capacity. Init is idempotent for
// repeated calls with the same capacity.
var ErrAlreadyInitialised = errors.New("modulecache: cache already initialised")

// Factory is the process-wide cache singleton: a single compiled-function
// cache shared by every query thread, lazily created by the first Init call.
type Factory struct {
	mu       sync.Mutex
	cache    *Cache
	capacity int64
}

var (
	factoryOnce sync.Once
	factory     *Factory
)

// Instance returns the process-wide Factory singleton.
func Instance() *Factory {
	factoryOnce.Do(func() { factory = &Factory{} })
	return factory
}

// Init creates the cache with the given absolute byte capacity. It is
// idempotent when called again with the same capacity, and fails with
// ErrAlreadyInitialised when called again with a different one.
func (f *Factory) Init(capacityBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cache != nil {
		if f.capacity == capacityBytes {
			return nil
		}
		return ErrAlreadyInitialised
	}
	f.capacity = capacityBytes
	f.cache = NewCache(capacityBytes)
	return nil
}

// TryGetCache returns the configured cache, or nil, false if Init has never
// been called. A caller that gets false should fall back to compiling
// inline, unbound by any shared cache.
func (f *Factory) TryGetCache() (*Cache, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache, f.cache != nil
}

// resetForTest tears down the singleton's cache, for test isolation only.
func resetForTest() {
	f := Instance()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = nil
	f.capacity = 0
}
