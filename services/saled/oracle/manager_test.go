package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"lavasale/native/sale"
)

type stubSource struct {
	name     string
	rate     *big.Rat
	observed time.Time
	err      error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, base, quote string) (*big.Rat, time.Time, error) {
	if s.err != nil {
		return nil, time.Time{}, s.err
	}
	return s.rate, s.observed, nil
}

func TestManagerAggregatesMedian(t *testing.T) {
	now := time.Now()
	sources := []Source{
		&stubSource{name: "a", rate: big.NewRat(150, 1), observed: now},
		&stubSource{name: "b", rate: big.NewRat(152, 1), observed: now},
		&stubSource{name: "c", rate: big.NewRat(148, 1), observed: now},
	}
	mgr, err := New(sources, []Pair{{Base: "SOL", Quote: "USD"}}, time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := mgr.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	quote, err := mgr.GetQuote("sol", "usd")
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if quote.Price != 15_000_000_000 {
		t.Fatalf("expected median 150 at expo -8, got %d", quote.Price)
	}
	if quote.Expo != -8 {
		t.Fatalf("unexpected expo %d", quote.Expo)
	}
	if quote.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestManagerSkipsBadSources(t *testing.T) {
	now := time.Now()
	sources := []Source{
		&stubSource{name: "failing", err: errors.New("boom")},
		&stubSource{name: "stale", rate: big.NewRat(140, 1), observed: now.Add(-time.Hour)},
		&stubSource{name: "negative", rate: big.NewRat(-1, 1), observed: now},
		&stubSource{name: "good", rate: big.NewRat(151, 2), observed: now},
	}
	mgr, err := New(sources, []Pair{{Base: "SOL", Quote: "USD"}}, time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := mgr.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	quote, err := mgr.GetQuote("SOL", "USD")
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	// 75.5 at expo -8.
	if quote.Price != 7_550_000_000 {
		t.Fatalf("unexpected price %d", quote.Price)
	}
}

func TestManagerAllSourcesFailing(t *testing.T) {
	sources := []Source{&stubSource{name: "failing", err: errors.New("boom")}}
	mgr, err := New(sources, []Pair{{Base: "SOL", Quote: "USD"}}, time.Second, 30*time.Second)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := mgr.Tick(context.Background()); err == nil {
		t.Fatalf("expected tick failure")
	}
	if _, err := mgr.GetQuote("SOL", "USD"); !errors.Is(err, sale.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestFixedPointPrice(t *testing.T) {
	price, ok := fixedPointPrice(big.NewRat(1, 3))
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if price != 33_333_333 {
		t.Fatalf("expected truncation to 33333333, got %d", price)
	}
	if _, ok := fixedPointPrice(nil); ok {
		t.Fatalf("nil rate must fail")
	}
	if _, ok := fixedPointPrice(big.NewRat(0, 1)); ok {
		t.Fatalf("zero rate must fail")
	}
}
