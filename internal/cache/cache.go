package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"starlit.dev/newsflow/internal/feed"
	"starlit.dev/newsflow/internal/globaltime"
)

// DefaultTTL bounds how long an aggregated page stays servable.
const DefaultTTL = 10 * time.Minute

// Page is one cached aggregated result. NextPage is empty when the provider
// issued no further pages.
type Page struct {
	Articles []feed.Article
	NextPage string
}

type entry struct {
	page      Page
	expiresAt time.Time
}

// Cache memoizes aggregated pages per (mode, query, page token) key for a
// bounded window. Expiry is lazy: expired entries read as misses. Writes for
// the same key are last-writer-wins; no correctness depends on which of two
// racing populates survives.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key builds the deterministic composite cache key. Mode is derived from
// query presence; the query is normalized so equivalent searches share an
// entry.
func Key(query, pageToken string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	mode := "latest"
	if q != "" {
		mode = "search"
	}
	token := strings.TrimSpace(pageToken)
	if token == "" {
		token = "first"
	}
	return fmt.Sprintf("%s|%s|%s", mode, q, token)
}

// Get returns the cached page for a key, treating expired entries as misses
// and dropping them.
func (c *Cache) Get(key string) (Page, bool) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Page{}, false
	}

	if globaltime.UTC().After(cached.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(cached.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return Page{}, false
	}

	return cached.page, true
}

// Set stores a page under a key for the cache TTL.
func (c *Cache) Set(key string, page Page) {
	expiresAt := globaltime.UTC().Add(c.ttl)
	c.mu.Lock()
	c.entries[key] = entry{page: page, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Len reports the number of stored entries, including not-yet-collected
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
