package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"lavasale/native/sale"
	"lavasale/observability"
	"lavasale/services/saled/storage"
)

// quoteExpo is the fixed-point exponent published to the engine. Upstream
// rates arrive as rationals and are truncated to 8 decimal digits.
const quoteExpo int32 = -8

// Source resolves the current rate for a currency pair as a rational.
type Source interface {
	Name() string
	Fetch(ctx context.Context, base, quote string) (*big.Rat, time.Time, error)
}

// Pair identifies a base/quote pair to poll.
type Pair struct {
	Base  string
	Quote string
}

// Manager polls upstream feeds and serves the aggregated result to the sale
// engine through the sale.PriceOracle interface.
type Manager struct {
	logger   *slog.Logger
	archive  *storage.Archive
	sources  []Source
	pairs    []Pair
	interval time.Duration
	maxAge   time.Duration
	once     sync.Once

	mu     sync.RWMutex
	quotes map[string]sale.PriceQuote
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithArchive enables sample persistence.
func WithArchive(a *storage.Archive) Option {
	return func(m *Manager) {
		m.archive = a
	}
}

// New constructs a manager instance.
func New(sources []Source, pairs []Pair, interval, maxAge time.Duration, opts ...Option) (*Manager, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source required")
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one pair required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	mgr := &Manager{
		logger:   slog.Default(),
		sources:  append([]Source{}, sources...),
		pairs:    append([]Pair{}, pairs...),
		interval: interval,
		maxAge:   maxAge,
		quotes:   make(map[string]sale.PriceQuote),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	return mgr, nil
}

// GetQuote implements sale.PriceOracle against the latest aggregated state.
func (m *Manager) GetQuote(base, quote string) (sale.PriceQuote, error) {
	if m == nil {
		return sale.PriceQuote{}, fmt.Errorf("oracle manager not configured")
	}
	key := pairKey(base, quote)
	m.mu.RLock()
	stored, ok := m.quotes[key]
	m.mu.RUnlock()
	if !ok {
		return sale.PriceQuote{}, fmt.Errorf("no aggregated quote for %s: %w", key, sale.ErrOracleUnavailable)
	}
	return stored, nil
}

// Run blocks, periodically polling upstream feeds until the context is
// cancelled. The first cycle runs immediately.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("oracle manager not configured")
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.once.Do(func() {
		m.logger.Info("oracle manager started", "sources", len(m.sources), "pairs", len(m.pairs))
	})
	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("oracle tick failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs a single aggregation cycle across all configured pairs.
func (m *Manager) Tick(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("oracle manager not configured")
	}
	for _, pair := range m.pairs {
		if err := m.processPair(ctx, pair); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) processPair(ctx context.Context, pair Pair) error {
	base := strings.TrimSpace(pair.Base)
	quote := strings.TrimSpace(pair.Quote)
	if base == "" || quote == "" {
		return fmt.Errorf("invalid pair configuration")
	}
	key := pairKey(base, quote)
	now := time.Now()
	metrics := observability.Oracle()
	rates := make([]*big.Rat, 0, len(m.sources))
	for _, src := range m.sources {
		if src == nil {
			continue
		}
		rate, observed, err := src.Fetch(ctx, base, quote)
		metrics.RecordFetch(src.Name(), err)
		if err != nil {
			m.logger.Warn("source fetch failed", "source", src.Name(), "pair", key, "err", err)
			continue
		}
		if rate == nil || rate.Sign() <= 0 {
			m.logger.Warn("source returned invalid rate", "source", src.Name(), "pair", key)
			continue
		}
		if observed.IsZero() || observed.After(now.Add(5*time.Second)) {
			m.logger.Warn("source produced unusable timestamp", "source", src.Name(), "pair", key)
			continue
		}
		if m.maxAge > 0 && observed.Before(now.Add(-m.maxAge)) {
			m.logger.Warn("source quote expired", "source", src.Name(), "pair", key)
			continue
		}
		rates = append(rates, new(big.Rat).Set(rate))
		if m.archive != nil {
			price, ok := fixedPointPrice(rate)
			if ok {
				if err := m.archive.RecordSample(ctx, key, src.Name(), price, quoteExpo, observed, now); err != nil {
					m.logger.Warn("record sample failed", "err", err)
				}
			}
		}
	}
	if len(rates) == 0 {
		return fmt.Errorf("no usable feeds for %s", key)
	}
	median := computeMedian(rates)
	price, ok := fixedPointPrice(median)
	if !ok {
		return fmt.Errorf("median out of range for %s", key)
	}
	m.mu.Lock()
	m.quotes[key] = sale.PriceQuote{Price: price, Expo: quoteExpo, Timestamp: now, Source: "aggregate"}
	m.mu.Unlock()
	metrics.RecordQuote(key, price, 0)
	return nil
}

// fixedPointPrice truncates a rational rate to price * 10^quoteExpo form.
func fixedPointPrice(rate *big.Rat) (int64, bool) {
	if rate == nil || rate.Sign() <= 0 {
		return 0, false
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-quoteExpo)), nil)
	scaled := new(big.Rat).Mul(rate, new(big.Rat).SetInt(scale))
	value := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !value.IsInt64() {
		return 0, false
	}
	price := value.Int64()
	if price <= 0 {
		return 0, false
	}
	return price, true
}

func computeMedian(rates []*big.Rat) *big.Rat {
	if len(rates) == 0 {
		return nil
	}
	sorted := make([]*big.Rat, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Rat).Set(sorted[mid])
	}
	sum := new(big.Rat).Add(sorted[mid-1], sorted[mid])
	return sum.Quo(sum, big.NewRat(2, 1))
}

func pairKey(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "/" + strings.ToUpper(strings.TrimSpace(quote))
}
