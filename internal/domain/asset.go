package domain

import "github.com/shopspring/decimal"

// AssetRecord is one tradable asset from the market-data ticker feed.
// Records are immutable; every fetch produces new ones.
type AssetRecord struct {
	ID               string          // lowercase feed id, unique (e.g. "bitcoin")
	Name             string          // display name
	Symbol           string          // uppercase ticker symbol, not unique (e.g. "BTC")
	Rank             int             // market-cap rank
	PriceUSD         decimal.Decimal // last price in USD
	PriceBTC         decimal.Decimal // last price in BTC
	Volume24hUSD     float64
	MarketCapUSD     float64
	AvailableSupply  float64
	TotalSupply      float64
	MaxSupply        float64
	PercentChange1h  float64
	PercentChange24h float64
	PercentChange7d  float64
	LastUpdated      int64 // unix seconds
}

// Snapshot is the global market summary. Replaced wholesale on every fetch.
type Snapshot struct {
	TotalMarketCapUSD            float64
	Total24hVolumeUSD            float64
	BitcoinPercentageOfMarketCap float64
	ActiveCurrencies             int
	ActiveAssets                 int
	ActiveMarkets                int
	LastUpdated                  int64 // unix seconds
}
