package stencil

import (
	"container/list"
	"os"
	"sync"
	"time"
)

// CacheConfig contains configuration options for the template cache
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration
}

// TemplateCache keeps template source bytes so repeated opens of one file
// skip the disk. Entries are keyed by path and invalidated when the file's
// modification time or size changes. Every open still builds its own
// Template from the cached bytes.
type TemplateCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
}

type cacheEntry struct {
	key     string
	data    []byte
	modTime time.Time
	size    int64
	expiry  time.Time
	element *list.Element
}

// NewTemplateCache creates a cache sized by the global configuration.
func NewTemplateCache() *TemplateCache {
	config := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewTemplateCacheWithConfig creates a new template cache with the given configuration
func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
	}
}

// Load returns the bytes of the file at path, from the cache when the file
// is unchanged since it was cached.
func (tc *TemplateCache) Load(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewDocumentError("stat", path, err)
	}
	if data, ok := tc.get(path, info); ok {
		GetLogger().Debug().Str("path", path).Msg("template cache hit")
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("read", path, err)
	}
	tc.set(path, data, info)
	return data, nil
}

func (tc *TemplateCache) get(key string, info os.FileInfo) ([]byte, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, exists := tc.cache[key]
	if !exists {
		return nil, false
	}
	stale := !entry.modTime.Equal(info.ModTime()) || entry.size != info.Size()
	if stale || (tc.config.TTL > 0 && time.Now().After(entry.expiry)) {
		tc.removeLocked(entry)
		return nil, false
	}
	tc.lru.MoveToFront(entry.element)
	return entry.data, true
}

func (tc *TemplateCache) set(key string, data []byte, info os.FileInfo) {
	if tc.config.MaxSize <= 0 {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if existing, ok := tc.cache[key]; ok {
		tc.removeLocked(existing)
	}
	for tc.lru.Len() >= tc.config.MaxSize {
		oldest := tc.lru.Back()
		if oldest == nil {
			break
		}
		tc.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{
		key:     key,
		data:    data,
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if tc.config.TTL > 0 {
		entry.expiry = time.Now().Add(tc.config.TTL)
	}
	entry.element = tc.lru.PushFront(entry)
	tc.cache[key] = entry
}

func (tc *TemplateCache) removeLocked(entry *cacheEntry) {
	delete(tc.cache, entry.key)
	tc.lru.Remove(entry.element)
}

// Remove drops path from the cache.
func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, ok := tc.cache[key]; ok {
		tc.removeLocked(entry)
	}
}

// Clear empties the cache.
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.cache = make(map[string]*cacheEntry)
	tc.lru = list.New()
}

// Size returns the current number of cached templates
func (tc *TemplateCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.cache)
}

// Close clears the cache.
func (tc *TemplateCache) Close() error {
	tc.Clear()
	return nil
}
