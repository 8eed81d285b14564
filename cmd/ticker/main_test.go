package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"crypto-price-bot/internal/domain"
)

func TestPrintAssets_LimitsToTop(t *testing.T) {
	assets := []domain.AssetRecord{
		{Rank: 1, Symbol: "BTC", Name: "Bitcoin", PriceUSD: decimal.NewFromInt(10000)},
		{Rank: 2, Symbol: "ETH", Name: "Ethereum", PriceUSD: decimal.NewFromInt(400)},
		{Rank: 3, Symbol: "XRP", Name: "Ripple", PriceUSD: decimal.NewFromFloat(0.2)},
	}

	var buf bytes.Buffer
	printAssets(&buf, assets, 2)

	out := buf.String()
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "10000.00")
	assert.Contains(t, out, "ETH")
	assert.NotContains(t, out, "XRP")
	assert.Equal(t, 3, strings.Count(out, "\n"), "header plus two rows")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, domain.Snapshot{TotalMarketCapUSD: 1.5e11, BitcoinPercentageOfMarketCap: 45.123, ActiveMarkets: 7})

	out := buf.String()
	assert.Contains(t, out, "$150000000000")
	assert.Contains(t, out, "45.12%")
	assert.Contains(t, out, "Active markets:     7")
	assert.NotContains(t, out, "Last updated")
}
