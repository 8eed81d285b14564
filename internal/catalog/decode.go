package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-price-bot/internal/domain"
)

// feedNumber accepts a JSON number, a numeric string, an empty string or null.
// The last two decode to zero.
type feedNumber float64

func (n *feedNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = feedNumber(f)
	return nil
}

// feedDecimal is an exact decimal with the same null and empty-string rules as feedNumber.
type feedDecimal struct {
	decimal.Decimal
}

func (d *feedDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		d.Decimal = decimal.Zero
		return nil
	}
	return d.Decimal.UnmarshalJSON(data)
}

type globalPayload struct {
	TotalMarketCapUSD            feedNumber `json:"total_market_cap_usd"`
	Total24hVolumeUSD            feedNumber `json:"total_24h_volume_usd"`
	BitcoinPercentageOfMarketCap feedNumber `json:"bitcoin_percentage_of_market_cap"`
	ActiveCurrencies             feedNumber `json:"active_currencies"`
	ActiveAssets                 feedNumber `json:"active_assets"`
	ActiveMarkets                feedNumber `json:"active_markets"`
	LastUpdated                  feedNumber `json:"last_updated"`
}

type tickerPayload struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Symbol           string      `json:"symbol"`
	Rank             feedNumber  `json:"rank"`
	PriceUSD         feedDecimal `json:"price_usd"`
	PriceBTC         feedDecimal `json:"price_btc"`
	Volume24hUSD     feedNumber  `json:"24h_volume_usd"`
	MarketCapUSD     feedNumber  `json:"market_cap_usd"`
	AvailableSupply  feedNumber  `json:"available_supply"`
	TotalSupply      feedNumber  `json:"total_supply"`
	MaxSupply        feedNumber  `json:"max_supply"`
	PercentChange1h  feedNumber  `json:"percent_change_1h"`
	PercentChange24h feedNumber  `json:"percent_change_24h"`
	PercentChange7d  feedNumber  `json:"percent_change_7d"`
	LastUpdated      feedNumber  `json:"last_updated"`
}

// leadingByte returns the first non-whitespace byte of body, or 0 if empty.
// A literal null unmarshals into a zero value without error, so the shape
// is checked before decoding.
func leadingByte(body []byte) byte {
	body = bytes.TrimLeft(body, " \t\r\n")
	if len(body) == 0 {
		return 0
	}
	return body[0]
}

// DecodeSnapshot decodes the global market summary body.
func DecodeSnapshot(body []byte) (domain.Snapshot, error) {
	if leadingByte(body) != '{' {
		return domain.Snapshot{}, &CatalogDecodeError{Feed: FeedGlobal, Err: errors.New("body is not a JSON object")}
	}
	var p globalPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Snapshot{}, &CatalogDecodeError{Feed: FeedGlobal, Err: err}
	}
	return domain.Snapshot{
		TotalMarketCapUSD:            float64(p.TotalMarketCapUSD),
		Total24hVolumeUSD:            float64(p.Total24hVolumeUSD),
		BitcoinPercentageOfMarketCap: float64(p.BitcoinPercentageOfMarketCap),
		ActiveCurrencies:             int(p.ActiveCurrencies),
		ActiveAssets:                 int(p.ActiveAssets),
		ActiveMarkets:                int(p.ActiveMarkets),
		LastUpdated:                  int64(p.LastUpdated),
	}, nil
}

// DecodeTicker decodes the full ticker body in feed order. Every entry must
// carry an id and a symbol.
func DecodeTicker(body []byte) ([]domain.AssetRecord, error) {
	if leadingByte(body) != '[' {
		return nil, &CatalogDecodeError{Feed: FeedTicker, Err: errors.New("body is not a JSON array")}
	}
	var payload []tickerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &CatalogDecodeError{Feed: FeedTicker, Err: err}
	}

	records := make([]domain.AssetRecord, 0, len(payload))
	for i, p := range payload {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
		if id == "" || symbol == "" {
			return nil, &CatalogDecodeError{
				Feed: FeedTicker,
				Err:  fmt.Errorf("entry %d: id and symbol are required", i),
			}
		}
		records = append(records, domain.AssetRecord{
			ID:               id,
			Name:             p.Name,
			Symbol:           symbol,
			Rank:             int(p.Rank),
			PriceUSD:         p.PriceUSD.Decimal,
			PriceBTC:         p.PriceBTC.Decimal,
			Volume24hUSD:     float64(p.Volume24hUSD),
			MarketCapUSD:     float64(p.MarketCapUSD),
			AvailableSupply:  float64(p.AvailableSupply),
			TotalSupply:      float64(p.TotalSupply),
			MaxSupply:        float64(p.MaxSupply),
			PercentChange1h:  float64(p.PercentChange1h),
			PercentChange24h: float64(p.PercentChange24h),
			PercentChange7d:  float64(p.PercentChange7d),
			LastUpdated:      int64(p.LastUpdated),
		})
	}
	return records, nil
}
