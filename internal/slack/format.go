package slack

import (
	"fmt"
	"strconv"
	"strings"

	"crypto-price-bot/internal/domain"
)

// FormatAsset renders one asset as a two-line mrkdwn block.
func FormatAsset(a domain.AssetRecord) string {
	return fmt.Sprintf("*%s* \t*$%s* :dollar:\n\t1h: %s%%,\t24h: %s%%,\t7d: %s%%",
		a.Symbol,
		a.PriceUSD.StringFixed(2),
		formatPercent(a.PercentChange1h),
		formatPercent(a.PercentChange24h),
		formatPercent(a.PercentChange7d),
	)
}

// FormatAssets renders every asset and joins the blocks with newlines.
func FormatAssets(assets []domain.AssetRecord) string {
	blocks := make([]string, len(assets))
	for i, a := range assets {
		blocks[i] = FormatAsset(a)
	}
	return strings.Join(blocks, "\n")
}

// formatPercent prints the shortest exact form, keeping one decimal on whole numbers (12 -> 12.0).
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
