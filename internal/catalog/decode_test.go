package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTicker_NumberForms(t *testing.T) {
	body := `[{"id": "Coin", "symbol": "cn", "rank": 7, "price_usd": 0.5,
		"percent_change_1h": "", "percent_change_24h": "-0.3", "percent_change_7d": 4.25,
		"last_updated": "1472762067"}]`

	records, err := DecodeTicker([]byte(body))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "coin", r.ID)
	assert.Equal(t, "CN", r.Symbol)
	assert.Equal(t, 7, r.Rank)
	assert.Equal(t, "0.50", r.PriceUSD.StringFixed(2))
	assert.Zero(t, r.PercentChange1h)
	assert.Equal(t, -0.3, r.PercentChange24h)
	assert.Equal(t, 4.25, r.PercentChange7d)
	assert.Equal(t, int64(1472762067), r.LastUpdated)
}

func TestDecodeTicker_NullPrice(t *testing.T) {
	records, err := DecodeTicker([]byte(`[{"id": "x", "symbol": "X", "price_usd": null, "price_btc": ""}]`))
	require.NoError(t, err)
	assert.True(t, records[0].PriceUSD.IsZero())
	assert.True(t, records[0].PriceBTC.IsZero())
}

func TestDecodeTicker_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `[{"symbol": "BTC"}]`},
		{"missing symbol", `[{"id": "bitcoin"}]`},
		{"blank symbol", `[{"id": "bitcoin", "symbol": "  "}]`},
		{"bad number", `[{"id": "bitcoin", "symbol": "BTC", "percent_change_1h": "n/a"}]`},
		{"not json", `<html>`},
		{"null body", `null`},
		{"object body", ` {"id": "bitcoin", "symbol": "BTC"}`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTicker([]byte(tt.body))
			var de *CatalogDecodeError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, FeedTicker, de.Feed)
		})
	}
}

func TestDecodeSnapshot_StringNumbers(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"total_market_cap_usd": "100.5", "active_markets": null}`))
	require.NoError(t, err)
	assert.Equal(t, 100.5, snap.TotalMarketCapUSD)
	assert.Zero(t, snap.ActiveMarkets)
}

func TestDecodeSnapshot_RejectsNonObject(t *testing.T) {
	for _, body := range []string{`null`, `[]`, `  `, `"x"`} {
		_, err := DecodeSnapshot([]byte(body))
		var de *CatalogDecodeError
		require.True(t, errors.As(err, &de), "body %q: got %v", body, err)
		assert.Equal(t, FeedGlobal, de.Feed)
	}
}
