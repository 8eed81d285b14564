// Package marketdata fetches remote market data through a TTL cache.
package marketdata

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/storage"
)

// DefaultTTL is how long fetched bodies stay in the cache.
const DefaultTTL = 600 * time.Second

// Cache is a cache-aside wrapper around a Fetcher. Concurrent misses for the
// same key share a single remote fetch. Safe for concurrent use.
type Cache struct {
	store   storage.CacheStore
	fetcher Fetcher
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewCache creates a Cache. A non-positive ttl selects DefaultTTL.
func NewCache(store storage.CacheStore, fetcher Fetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger.Named("marketdata"),
	}
}

// TTL returns the configured expiry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the bytes cached under key, or fetches remoteURL with params on
// a miss, stores the body under key and returns it. A failed fetch writes
// nothing. A caller whose ctx ends stops waiting without cancelling the
// shared fetch.
func (c *Cache) Get(ctx context.Context, key, remoteURL string, params url.Values) ([]byte, error) {
	if cached, ok := c.lookup(ctx, key); ok {
		return cached, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fill(context.WithoutCancel(ctx), key, remoteURL, params)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.([]byte)
		if res.Shared {
			body = bytes.Clone(body)
		}
		return body, nil
	}
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		ok = false
	}
	observability.RecordCacheLookup(key, ok)
	return cached, ok
}

func (c *Cache) fill(ctx context.Context, key, remoteURL string, params url.Values) ([]byte, error) {
	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, remoteURL, params)
	observability.RecordRemoteFetch(key, fetchStatus(err), time.Since(start))
	if err != nil {
		c.logger.Error("market data fetch failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	if err := c.store.Set(ctx, key, body, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	c.logger.Debug("market data cached",
		zap.String("key", key),
		zap.Int("bytes", len(body)),
		zap.Duration("ttl", c.ttl))
	return body, nil
}

func fetchStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *RemoteFetchError
	if errors.As(err, &fe) && fe.StatusCode != 0 {
		return strconv.Itoa(fe.StatusCode)
	}
	return "error"
}
