package sale

import (
	"strings"
	"time"
)

// Params carries the operator-defined sale parameters. The zero value is not
// usable; call Normalise to apply canonical defaults.
type Params struct {
	// Operator is the only identity allowed to run setup, round advancement
	// and finalisation.
	Operator [20]byte
	// NativeSymbol names the native settlement currency for oracle lookups.
	NativeSymbol string
	// QuoteSymbol names the quote side of the oracle pair.
	QuoteSymbol string
	// StableAssets lists the identities of the allow-listed stable-value
	// payment tokens. The sale accepts exactly two.
	StableAssets []string
	// MaxQuoteAge bounds oracle staleness for native-path contributions.
	MaxQuoteAge time.Duration
	// MaxContributionUSD caps the lifetime USD spend per contributor (6dp).
	MaxContributionUSD uint64
	// MaxRounds caps how many pricing rounds may ever exist.
	MaxRounds uint8
}

// Normalise applies defaults and canonical casing to defensive copies.
func (p Params) Normalise() Params {
	params := Params{
		Operator:           p.Operator,
		NativeSymbol:       normaliseSymbol(p.NativeSymbol),
		QuoteSymbol:        normaliseSymbol(p.QuoteSymbol),
		MaxQuoteAge:        p.MaxQuoteAge,
		MaxContributionUSD: p.MaxContributionUSD,
		MaxRounds:          p.MaxRounds,
	}
	if params.NativeSymbol == "" {
		params.NativeSymbol = "SOL"
	}
	if params.QuoteSymbol == "" {
		params.QuoteSymbol = "USD"
	}
	if params.MaxQuoteAge <= 0 {
		params.MaxQuoteAge = DefaultMaxQuoteAge
	}
	if params.MaxContributionUSD == 0 {
		params.MaxContributionUSD = DefaultMaxContributionUSD
	}
	if params.MaxRounds == 0 {
		params.MaxRounds = MaxRounds
	}
	seen := make(map[string]struct{}, len(p.StableAssets))
	for _, asset := range p.StableAssets {
		trimmed := strings.TrimSpace(asset)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		params.StableAssets = append(params.StableAssets, trimmed)
	}
	return params
}

// IsStableAsset reports whether the payment asset is allow-listed.
func (p Params) IsStableAsset(asset string) bool {
	needle := strings.TrimSpace(asset)
	if needle == "" {
		return false
	}
	for _, entry := range p.StableAssets {
		if entry == needle {
			return true
		}
	}
	return false
}
