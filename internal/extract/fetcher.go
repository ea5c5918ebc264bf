package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"
)

const (
	defaultFetchTimeout = 20 * time.Second
	dialTimeout         = 10 * time.Second
	maxPageBytes  = 5 << 20
	userAgent     = "Mozilla/5.0 (compatible; summarist/1.0)"
	htmlMediaType = "text/html"
)

// ErrForbiddenAddress is returned for pages served from loopback, private,
// link-local or otherwise non-public addresses.
var ErrForbiddenAddress = errors.New("address is not public")

type FetcherConfig struct {
	MaxChars int
	// Timeout bounds a whole page download. Zero means 20 seconds.
	Timeout time.Duration
	// AllowPrivateAddresses lifts the public address check. Tests only.
	AllowPrivateAddresses bool
	// CacheSize and CacheTTL bound the article cache. Zero disables it.
	CacheSize int
	CacheTTL  time.Duration
}

// Fetcher downloads pages and extracts their article text.
type Fetcher struct {
	client   *http.Client
	maxChars int
	cache    *articleCache
	now      func() time.Time
	log      *slog.Logger
}

func NewFetcher(cfg FetcherConfig, log *slog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	if !cfg.AllowPrivateAddresses {
		dialer.Control = rejectNonPublic
	}

	// No proxy: the address check must see the real destination.
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Fetcher{
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxChars: cfg.MaxChars,
		cache:    newArticleCache(cfg.CacheSize, cfg.CacheTTL),
		now:      time.Now,
		log:      log,
	}
}

// Fetch returns the article behind pageURL, from the cache when a fresh copy
// is there.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Article, error) {
	if a, ok := f.cache.get(pageURL, f.now()); ok {
		f.log.DebugContext(ctx, "Article is taken from cache",
			"url", pageURL)

		return a, nil
	}

	a, err := f.download(ctx, pageURL)
	if err != nil {
		return Article{}, err
	}

	f.cache.put(pageURL, a, f.now())

	return a, nil
}

func (f *Fetcher) download(ctx context.Context, pageURL string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Article{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // User-supplied article URL.
	if err != nil {
		return Article{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", pageURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" &&
		!strings.Contains(strings.ToLower(contentType), htmlMediaType) {
		return Article{}, fmt.Errorf("unsupported content type: %s", contentType)
	}

	return Extract(io.LimitReader(resp.Body, maxPageBytes), f.maxChars)
}

// rejectNonPublic runs after DNS resolution for every connection, redirects
// included.
func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("split address %q: %w", address, err)
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", host, err)
	}

	if !isPublic(ip.Unmap()) {
		return fmt.Errorf("dial %s: %w", ip, ErrForbiddenAddress)
	}

	return nil
}

func isPublic(ip netip.Addr) bool {
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!sharedAddressSpace.Contains(ip)
}

// Carrier-grade NAT range, not covered by netip.Addr.IsPrivate.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")
