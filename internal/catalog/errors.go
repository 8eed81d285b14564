package catalog

import "fmt"

// Feed names used in CatalogDecodeError.
const (
	FeedGlobal = "global"
	FeedTicker = "ticker"
)

// CatalogDecodeError reports a market data body that could not be decoded.
type CatalogDecodeError struct {
	Feed string
	Err  error
}

func (e *CatalogDecodeError) Error() string {
	return fmt.Sprintf("decode %s feed: %v", e.Feed, e.Err)
}

func (e *CatalogDecodeError) Unwrap() error {
	return e.Err
}
