package sale

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// PriceQuote is a fixed-point oracle observation: the pair trades at
// Price * 10^Expo, with Expo typically negative. Timestamp records when the
// upstream feed produced the observation.
type PriceQuote struct {
	Price     int64
	Expo      int32
	Timestamp time.Time
	Source    string
}

// PriceOracle resolves the latest quote for a currency pair. Implementations
// must return the freshest observation they hold; staleness enforcement is the
// engine's responsibility and happens on every call.
type PriceOracle interface {
	GetQuote(base, quote string) (PriceQuote, error)
}

// ValidateQuote rejects quotes that are unusable for pricing: non-positive
// prices, missing timestamps and observations older than maxAge.
func ValidateQuote(q PriceQuote, now time.Time, maxAge time.Duration) error {
	if q.Price <= 0 {
		return ErrOracleUnavailable
	}
	if q.Timestamp.IsZero() {
		return ErrOracleUnavailable
	}
	if maxAge > 0 && now.Sub(q.Timestamp) > maxAge {
		return ErrOracleStale
	}
	return nil
}

// ManualOracle is an in-memory oracle used by tests and for manual overrides
// during incident response.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]PriceQuote
}

// NewManualOracle constructs an empty manual oracle.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{quotes: make(map[string]PriceQuote)}
}

// Set stores a quote for the pair.
func (m *ManualOracle) Set(base, quote string, price int64, expo int32, ts time.Time) {
	if m == nil {
		return
	}
	key := pairKey(base, quote)
	m.mu.Lock()
	m.quotes[key] = PriceQuote{Price: price, Expo: expo, Timestamp: ts, Source: "manual"}
	m.mu.Unlock()
}

// GetQuote returns the stored quote for the pair.
func (m *ManualOracle) GetQuote(base, quote string) (PriceQuote, error) {
	if m == nil {
		return PriceQuote{}, fmt.Errorf("manual oracle not configured")
	}
	key := pairKey(base, quote)
	m.mu.RLock()
	stored, ok := m.quotes[key]
	m.mu.RUnlock()
	if !ok {
		return PriceQuote{}, fmt.Errorf("manual oracle: quote for %s/%s not found: %w", base, quote, ErrOracleUnavailable)
	}
	return stored, nil
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func pairKey(base, quote string) string {
	return normaliseSymbol(base) + ":" + normaliseSymbol(quote)
}
