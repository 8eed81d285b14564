// Package resolver finds the assets mentioned in free-form chat text.
package resolver

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"crypto-price-bot/internal/catalog"
	"crypto-price-bot/internal/domain"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Catalog is the part of catalog.Catalog the resolver needs.
type Catalog interface {
	Refresh(ctx context.Context) error
	Current() *catalog.Index
}

// Resolver matches message tokens against catalog symbols and ids.
type Resolver struct {
	catalog Catalog
}

// New creates a Resolver.
func New(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve refreshes the catalog and returns the assets named in text:
// symbol matches first, then id matches for tokens that were not symbols.
// Each group is ordered by token. Unknown tokens are ignored. A refresh
// error aborts resolution.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]domain.AssetRecord, error) {
	if err := r.catalog.Refresh(ctx); err != nil {
		return nil, err
	}
	return Match(r.catalog.Current(), Tokenize(text)), nil
}

// Match applies the symbol-then-id rule to tokens against ix.
func Match(ix *catalog.Index, tokens []string) []domain.AssetRecord {
	var bySymbol, byID []string
	for _, tok := range tokens {
		if _, ok := ix.BySymbol(tok); ok {
			bySymbol = append(bySymbol, tok)
			continue
		}
		if _, ok := ix.ByID(tok); ok {
			byID = append(byID, tok)
		}
	}
	sort.Strings(bySymbol)
	sort.Strings(byID)

	result := make([]domain.AssetRecord, 0, len(bySymbol)+len(byID))
	for _, tok := range bySymbol {
		a, _ := ix.BySymbol(tok)
		result = append(result, a)
	}
	for _, tok := range byID {
		a, _ := ix.ByID(tok)
		result = append(result, a)
	}
	return result
}

// Tokenize lowercases text, strips ASCII punctuation and returns the distinct
// whitespace-separated words in first-seen order.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
