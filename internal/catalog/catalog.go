// Package catalog keeps an immutable, atomically replaced index of the latest
// market data snapshot and ticker.
package catalog

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/observability"
)

// Cache keys for the two feeds.
const (
	GlobalKey = "coin_global"
	TickerKey = "coin_ticker"
)

// Source returns the raw body for a feed, from cache or remote.
type Source interface {
	Get(ctx context.Context, key, remoteURL string, params url.Values) ([]byte, error)
}

// Index is one consistent view of the market: a snapshot plus lookups built
// from the same refresh. Never mutated after construction.
type Index struct {
	Snapshot  domain.Snapshot
	FetchedAt time.Time

	assets   []domain.AssetRecord // feed order
	byID     map[string]domain.AssetRecord
	bySymbol map[string]domain.AssetRecord
}

// NewIndex builds an index. On duplicate symbols the later record in feed
// order wins.
func NewIndex(snapshot domain.Snapshot, assets []domain.AssetRecord, fetchedAt time.Time) *Index {
	ix := &Index{
		Snapshot:  snapshot,
		FetchedAt: fetchedAt,
		assets:    assets,
		byID:      make(map[string]domain.AssetRecord, len(assets)),
		bySymbol:  make(map[string]domain.AssetRecord, len(assets)),
	}
	for _, a := range assets {
		ix.byID[strings.ToLower(a.ID)] = a
		ix.bySymbol[strings.ToLower(a.Symbol)] = a
	}
	return ix
}

var emptyIndex = NewIndex(domain.Snapshot{}, nil, time.Time{})

// ByID looks up an asset by id, case-insensitively.
func (ix *Index) ByID(id string) (domain.AssetRecord, bool) {
	a, ok := ix.byID[strings.ToLower(id)]
	return a, ok
}

// BySymbol looks up an asset by symbol, case-insensitively.
func (ix *Index) BySymbol(symbol string) (domain.AssetRecord, bool) {
	a, ok := ix.bySymbol[strings.ToLower(symbol)]
	return a, ok
}

// Len returns the number of assets in feed order, duplicates included.
func (ix *Index) Len() int {
	return len(ix.assets)
}

// Assets returns a copy of the assets ordered by rank. Unranked assets go last.
func (ix *Index) Assets() []domain.AssetRecord {
	out := make([]domain.AssetRecord, len(ix.assets))
	copy(out, ix.assets)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return out
}

// Catalog refreshes and serves the current Index. Safe for concurrent use.
type Catalog struct {
	source  Source
	baseURL string
	current atomic.Pointer[Index]
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Catalog reading feeds below baseURL (e.g. https://api.coinmarketcap.com/v1/).
func New(source Source, baseURL string, logger *zap.Logger) *Catalog {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		source:  source,
		baseURL: baseURL,
		now:     time.Now,
		logger:  logger.Named("catalog"),
	}
	c.current.Store(emptyIndex)
	return c
}

// Refresh fetches both feeds, decodes them and publishes a new Index in one
// step. On any error the previous Index stays current.
func (c *Catalog) Refresh(ctx context.Context) error {
	var globalBody, tickerBody []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.source.Get(gctx, GlobalKey, c.baseURL+"global/", nil)
		globalBody = body
		return err
	})
	g.Go(func() error {
		body, err := c.source.Get(gctx, TickerKey, c.baseURL+"ticker/", url.Values{"limit": {"0"}})
		tickerBody = body
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RecordCatalogRefresh(err, 0)
		return err
	}

	snapshot, err := DecodeSnapshot(globalBody)
	if err != nil {
		observability.RecordCatalogRefresh(err, 0)
		c.logger.Error("global feed rejected", zap.Error(err))
		return err
	}
	assets, err := DecodeTicker(tickerBody)
	if err != nil {
		observability.RecordCatalogRefresh(err, 0)
		c.logger.Error("ticker feed rejected", zap.Error(err))
		return err
	}

	ix := NewIndex(snapshot, assets, c.now())
	c.current.Store(ix)
	observability.RecordCatalogRefresh(nil, ix.Len())
	c.logger.Debug("catalog refreshed", zap.Int("assets", ix.Len()))
	return nil
}

// Current returns the latest published Index. Never nil.
func (c *Catalog) Current() *Index {
	return c.current.Load()
}

// ByID looks up an asset in the current Index.
func (c *Catalog) ByID(id string) (domain.AssetRecord, bool) {
	return c.Current().ByID(id)
}

// BySymbol looks up an asset in the current Index.
func (c *Catalog) BySymbol(symbol string) (domain.AssetRecord, bool) {
	return c.Current().BySymbol(symbol)
}

// Snapshot returns the market summary of the current Index.
func (c *Catalog) Snapshot() domain.Snapshot {
	return c.Current().Snapshot
}

// Assets returns the current assets ordered by rank.
func (c *Catalog) Assets() []domain.AssetRecord {
	return c.Current().Assets()
}
