package extract

import (
	"testing"
	"time"
)

func TestArticleCacheGetPut(t *testing.T) {
	cache := newArticleCache(2, time.Hour)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	cache.put("https://example.com/a#comments", Article{Title: "A"}, now)

	got, ok := cache.get("https://example.com/a", now)
	if !ok {
		t.Fatalf("expected cached article")
	}
	if got.Title != "A" {
		t.Fatalf("unexpected article: %+v", got)
	}

	if _, ok = cache.get("https://example.com/a?page=2", now); ok {
		t.Fatalf("query must be part of the key")
	}
}

func TestArticleCacheExpires(t *testing.T) {
	cache := newArticleCache(2, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	cache.put("https://example.com/a", Article{Title: "A"}, now)

	if _, ok := cache.get("https://example.com/a", now.Add(time.Minute)); ok {
		t.Fatalf("expected entry to expire")
	}
	if len(cache.items) != 0 {
		t.Fatalf("expected expired entry to be removed")
	}
}

func TestArticleCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newArticleCache(2, time.Hour)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	cache.put("a", Article{Title: "A"}, now)
	cache.put("b", Article{Title: "B"}, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected a before eviction")
	}

	cache.put("c", Article{Title: "C"}, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected a to survive")
	}
	if _, ok := cache.get("b", now); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok := cache.get("c", now); !ok {
		t.Fatalf("expected c to be cached")
	}
}

func TestDisabledArticleCache(t *testing.T) {
	cache := newArticleCache(0, time.Hour)
	now := time.Now()

	cache.put("a", Article{Title: "A"}, now)

	if _, ok := cache.get("a", now); ok {
		t.Fatalf("disabled cache must always miss")
	}
}
