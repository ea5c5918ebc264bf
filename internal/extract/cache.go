package extract

import (
	"container/list"
	"net/url"
	"strings"
	"sync"
	"time"
)

// articleCache is a bounded LRU of extracted articles with a fixed TTL.
type articleCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	recency    *list.List
	maxEntries int
	ttl        time.Duration
}

type cachedArticle struct {
	key       string
	article   Article
	expiresAt time.Time
}

// newArticleCache returns nil when caching is disabled. A nil cache misses
// on every lookup.
func newArticleCache(maxEntries int, ttl time.Duration) *articleCache {
	if maxEntries <= 0 || ttl <= 0 {
		return nil
	}

	return &articleCache{
		items:      make(map[string]*list.Element, maxEntries),
		recency:    list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// cacheKey drops the fragment, which never changes the served page.
func cacheKey(pageURL string) string {
	trimmed := strings.TrimSpace(pageURL)

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

func (c *articleCache) get(pageURL string, now time.Time) (Article, bool) {
	if c == nil {
		return Article{}, false
	}

	key := cacheKey(pageURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return Article{}, false
	}

	entry := elem.Value.(*cachedArticle) //nolint:forcetypeassert // Only *cachedArticle is stored.
	if !now.Before(entry.expiresAt) {
		c.remove(elem)

		return Article{}, false
	}

	c.recency.MoveToFront(elem)

	return entry.article, true
}

func (c *articleCache) put(pageURL string, article Article, now time.Time) {
	if c == nil {
		return
	}

	key := cacheKey(pageURL)
	expiresAt := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cachedArticle) //nolint:forcetypeassert // Only *cachedArticle is stored.
		entry.article = article
		entry.expiresAt = expiresAt
		c.recency.MoveToFront(elem)

		return
	}

	c.items[key] = c.recency.PushFront(&cachedArticle{
		key:       key,
		article:   article,
		expiresAt: expiresAt,
	})

	for len(c.items) > c.maxEntries {
		c.remove(c.recency.Back())
	}
}

func (c *articleCache) remove(elem *list.Element) {
	entry := elem.Value.(*cachedArticle) //nolint:forcetypeassert // Only *cachedArticle is stored.
	delete(c.items, entry.key)
	c.recency.Remove(elem)
}
